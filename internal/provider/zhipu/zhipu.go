// Package zhipu integrates the Z.AI / bigmodel.cn usage-quota API.
package zhipu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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

const quotaPath = "/api/monitor/usage/quota/limit"

// Limit discriminator values in the vendor response. Everything else in the
// limits array is discarded.
const (
	limitTypeTokens = "TOKENS_LIMIT"
	limitTypeTime   = "TIME_LIMIT"
)

// Limit is one named quota limit as reported by the vendor. CurrentValue and
// Usage are carried through to keep the cache file shape stable even though
// the renderer only reads Percentage.
type Limit struct {
	Type         string  `json:"type"`
	Percentage   float64 `json:"percentage"`
	CurrentValue *uint64 `json:"currentValue,omitempty"`
	Usage        *uint64 `json:"usage,omitempty"`
}

// Snapshot is the normalized quota state, which doubles as the cache file
// schema (~/.claude/.zhipu_cache.json).
type Snapshot struct {
	TokenLimit *Limit    `json:"token_limit"`
	MCPLimit   *Limit    `json:"mcp_limit"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Snapshot) CapturedAt() time.Time { return s.Timestamp }

// Provider implements provider.Provider for Z.AI endpoints.
type Provider struct {
	client    *http.Client
	cachePath string
	now       func() time.Time
}

func New() *Provider {
	return &Provider{
		client:    &http.Client{Timeout: provider.FetchTimeout},
		cachePath: defaultCachePath(),
		now:       time.Now,
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", ".zhipu_cache.json")
}

func (p *Provider) Name() string { return "zhipu" }

func (p *Provider) Matches(baseURL string) bool {
	return strings.Contains(baseURL, "bigmodel.cn") || strings.Contains(baseURL, "z.ai")
}

func (p *Provider) Segments(ctx context.Context, creds credentials.Credentials) []render.Segment {
	snapshot := p.usage(ctx, creds)
	if snapshot == nil {
		return nil
	}
	return Render(snapshot)
}

// usage serves the cached snapshot when it is fresh enough, fetching
// otherwise. Both paths can come back empty-handed; that is not an error.
func (p *Provider) usage(ctx context.Context, creds credentials.Credentials) *Snapshot {
	var cached Snapshot
	if cachefile.Load(p.cachePath, provider.CacheTTL, p.now(), &cached) {
		return &cached
	}
	return p.fetch(ctx, creds)
}

// fetch rebuilds scheme://host from the session endpoint, calls the quota
// API and normalizes the response. On success the cache file is overwritten
// unconditionally before returning.
func (p *Provider) fetch(ctx context.Context, creds credentials.Credentials) *Snapshot {
	parsed, err := url.Parse(creds.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}
	quotaURL := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, quotaPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, quotaURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", creds.AuthToken)
	req.Header.Set("Accept-Language", "en-US,en")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		diag.L().Warn("zhipu quota fetch failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag.L().Warn("zhipu quota fetch rejected", zap.Int("status", resp.StatusCode))
		return nil
	}

	var payload struct {
		Data struct {
			Limits []Limit `json:"limits"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		diag.L().Warn("zhipu quota response undecodable", zap.Error(err))
		return nil
	}

	snapshot := &Snapshot{Timestamp: p.now().UTC()}
	for i := range payload.Data.Limits {
		limit := payload.Data.Limits[i]
		switch limit.Type {
		case limitTypeTokens:
			snapshot.TokenLimit = &limit
		case limitTypeTime:
			snapshot.MCPLimit = &limit
		}
	}

	if err := cachefile.Store(p.cachePath, snapshot); err != nil {
		diag.L().Warn("zhipu cache write failed", zap.Error(err))
	}
	return snapshot
}

// Render turns a snapshot into status segments. Pure; up to two segments,
// one per limit that was present in the vendor response.
func Render(s *Snapshot) []render.Segment {
	var segments []render.Segment
	if s.TokenLimit != nil {
		segments = append(segments, render.Segment{
			Color: render.ByUsage(s.TokenLimit.Percentage),
			Text:  fmt.Sprintf("[ZAI] Token(5h):%.0f%%", s.TokenLimit.Percentage),
		})
	}
	if s.MCPLimit != nil {
		segments = append(segments, render.Segment{
			Color: render.ByUsage(s.MCPLimit.Percentage),
			Text:  fmt.Sprintf("[ZAI] MCP(1月):%.0f%%", s.MCPLimit.Percentage),
		})
	}
	return segments
}
