// Package yunyi integrates the Yunyi relay account API.
package yunyi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/macfox/promptline/internal/cachefile"
	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/diag"
	"github.com/macfox/promptline/internal/provider"
	"github.com/macfox/promptline/internal/render"
)

// The account API lives at a fixed host, unlike zhipu where the endpoint is
// derived from the session base URL.
const defaultAPIURL = "https://yunyi.cfd/user/api/v1/me"

// expiryZone is the fixed UTC+8 offset expiry timestamps are displayed in.
var expiryZone = time.FixedZone("UTC+8", 8*3600)

// Snapshot is the normalized account state, which doubles as the cache file
// schema (~/.claude/.yunyi_cache.json). Amounts are in minor currency units.
type Snapshot struct {
	DailyUsed         *uint64   `json:"daily_used,omitempty"`
	DailyQuota        *uint64   `json:"daily_quota,omitempty"`
	DailySpent        *uint64   `json:"daily_spent,omitempty"`
	DailyTotalSpent   *uint64   `json:"daily_total_spent,omitempty"`
	ExpiresAt         string    `json:"expires_at,omitempty"`
	RequestCount      *uint64   `json:"request_count,omitempty"`
	DailyRequestCount *uint64   `json:"daily_request_count,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func (s *Snapshot) CapturedAt() time.Time { return s.Timestamp }

// Provider implements provider.Provider for Yunyi endpoints.
type Provider struct {
	client    *http.Client
	apiURL    string
	cachePath string
	now       func() time.Time
}

func New() *Provider {
	return &Provider{
		client:    &http.Client{Timeout: provider.FetchTimeout},
		apiURL:    defaultAPIURL,
		cachePath: defaultCachePath(),
		now:       time.Now,
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", ".yunyi_cache.json")
}

func (p *Provider) Name() string { return "yunyi" }

func (p *Provider) Matches(baseURL string) bool {
	return strings.Contains(baseURL, "yunyi.rdzhvip.com") || strings.Contains(baseURL, "yunyi.cfd")
}

func (p *Provider) Segments(ctx context.Context, creds credentials.Credentials) []render.Segment {
	snapshot := p.usage(ctx, creds)
	if snapshot == nil {
		return nil
	}
	return Render(snapshot)
}

func (p *Provider) usage(ctx context.Context, creds credentials.Credentials) *Snapshot {
	var cached Snapshot
	if cachefile.Load(p.cachePath, provider.CacheTTL, p.now(), &cached) {
		return &cached
	}
	return p.fetch(ctx, creds.AuthToken)
}

// bearerToken ensures exactly one "Bearer " prefix. The check is
// case-insensitive so an already-prefixed token passes through unchanged.
func bearerToken(token string) string {
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		return token
	}
	return "Bearer " + token
}

func (p *Provider) fetch(ctx context.Context, token string) *Snapshot {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", bearerToken(token))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en,zh-CN;q=0.9,zh;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		diag.L().Warn("yunyi account fetch failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag.L().Warn("yunyi account fetch rejected", zap.Int("status", resp.StatusCode))
		return nil
	}

	// Missing fields inside these objects are absent, not a fetch failure;
	// only a top-level shape mismatch aborts.
	var payload struct {
		Quota struct {
			DailyQuota      *uint64 `json:"daily_quota"`
			DailySpent      *uint64 `json:"daily_spent"`
			DailyUsed       *uint64 `json:"daily_used"`
			DailyTotalSpent *uint64 `json:"daily_total_spent"`
		} `json:"quota"`
		Usage struct {
			RequestCount      *uint64 `json:"request_count"`
			DailyRequestCount *uint64 `json:"daily_request_count"`
			DailySpent        *uint64 `json:"daily_spent"`
		} `json:"usage"`
		Timestamps struct {
			ExpiresAt string `json:"expires_at"`
		} `json:"timestamps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		diag.L().Warn("yunyi account response undecodable", zap.Error(err))
		return nil
	}

	dailySpent := payload.Quota.DailySpent
	if dailySpent == nil {
		dailySpent = payload.Usage.DailySpent
	}
	snapshot := &Snapshot{
		DailyUsed:         payload.Quota.DailyUsed,
		DailyQuota:        payload.Quota.DailyQuota,
		DailySpent:        dailySpent,
		DailyTotalSpent:   payload.Quota.DailyTotalSpent,
		ExpiresAt:         payload.Timestamps.ExpiresAt,
		RequestCount:      payload.Usage.RequestCount,
		DailyRequestCount: payload.Usage.DailyRequestCount,
		Timestamp:         p.now().UTC(),
	}

	if err := cachefile.Store(p.cachePath, snapshot); err != nil {
		diag.L().Warn("yunyi cache write failed", zap.Error(err))
	}
	return snapshot
}

// Render turns a snapshot into status segments. Pure; up to two segments:
// remaining balance and plan expiry.
func Render(s *Snapshot) []render.Segment {
	var segments []render.Segment

	if s.DailyQuota != nil && s.DailyTotalSpent != nil {
		quota, spent := *s.DailyQuota, *s.DailyTotalSpent
		var remaining uint64
		if quota > spent {
			remaining = quota - spent
		}
		remainingPct := 0.0
		if quota > 0 {
			remainingPct = float64(remaining) / float64(quota) * 100
		}
		segments = append(segments, render.Segment{
			Color: render.ByRemaining(remainingPct),
			Text:  fmt.Sprintf("[YUNYI] Rem:$%.2f", float64(remaining)/100),
		})
	}

	if s.ExpiresAt != "" {
		segments = append(segments, render.Segment{
			Color: render.Dim,
			Text:  "[YUNYI] Exp:" + formatExpiry(s.ExpiresAt),
		})
	}

	return segments
}

// formatExpiry reformats an RFC-3339 expiry into "MM-DD HH:MM" at UTC+8,
// falling back to the raw vendor string when it does not parse.
func formatExpiry(raw string) string {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.In(expiryZone).Format("01-02 15:04")
}
