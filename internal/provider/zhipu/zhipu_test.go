package zhipu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/macfox/promptline/internal/cachefile"
	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/render"
)

const limitsBody = `{"data":{"limits":[
	{"type":"TOKENS_LIMIT","percentage":45.0},
	{"type":"TIME_LIMIT","percentage":72.0},
	{"type":"OTHER_LIMIT","percentage":99.0}
]}}`

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p := New()
	p.cachePath = filepath.Join(t.TempDir(), "zhipu_cache.json")
	return p
}

func TestMatches(t *testing.T) {
	p := New()
	for _, url := range []string{"https://api.bigmodel.cn/v1", "https://open.z.ai/api"} {
		if !p.Matches(url) {
			t.Errorf("Matches(%q) = false, want true", url)
		}
	}
	if p.Matches("https://api.anthropic.com") {
		t.Errorf("Matches(anthropic) = true, want false")
	}
}

func TestFetchAndRender(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(limitsBody))
	}))
	defer server.Close()

	p := testProvider(t)
	creds := credentials.Credentials{BaseURL: server.URL + "/v1/some/path", AuthToken: "raw-token"}
	segments := p.Segments(context.Background(), creds)

	if gotPath != "/api/monitor/usage/quota/limit" {
		t.Fatalf("request path = %q, want the quota API path (endpoint path discarded)", gotPath)
	}
	if gotAuth != "raw-token" {
		t.Fatalf("Authorization = %q, want the raw token", gotAuth)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "[ZAI] Token(5h):45%" || segments[0].Color != render.Green {
		t.Fatalf("token segment = %+v, want nominal 45%%", segments[0])
	}
	if segments[1].Text != "[ZAI] MCP(1月):72%" || segments[1].Color != render.Yellow {
		t.Fatalf("mcp segment = %+v, want warning 72%%", segments[1])
	}
}

func TestFetchWritesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(limitsBody))
	}))
	defer server.Close()

	p := testProvider(t)
	p.Segments(context.Background(), credentials.Credentials{BaseURL: server.URL, AuthToken: "t"})

	var cached Snapshot
	if !cachefile.Load(p.cachePath, time.Minute, time.Now(), &cached) {
		t.Fatalf("expected a fresh cache file after fetch")
	}
	if cached.TokenLimit == nil || cached.TokenLimit.Percentage != 45.0 {
		t.Fatalf("cached token limit = %+v, want 45.0", cached.TokenLimit)
	}
}

func TestFreshCacheSkipsFetch(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(limitsBody))
	}))
	defer server.Close()

	p := testProvider(t)
	snapshot := &Snapshot{
		TokenLimit: &Limit{Type: "TOKENS_LIMIT", Percentage: 12},
		Timestamp:  time.Now().UTC().Add(-2 * time.Minute),
	}
	if err := cachefile.Store(p.cachePath, snapshot); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	segments := p.Segments(context.Background(), credentials.Credentials{BaseURL: server.URL, AuthToken: "t"})
	if requests != 0 {
		t.Fatalf("fetch was invoked %d times despite a fresh cache", requests)
	}
	if len(segments) != 1 || segments[0].Text != "[ZAI] Token(5h):12%" {
		t.Fatalf("segments = %+v, want cached token segment", segments)
	}
}

func TestStaleCacheTriggersFetch(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(limitsBody))
	}))
	defer server.Close()

	p := testProvider(t)
	snapshot := &Snapshot{
		TokenLimit: &Limit{Type: "TOKENS_LIMIT", Percentage: 12},
		Timestamp:  time.Now().UTC().Add(-10 * time.Minute),
	}
	if err := cachefile.Store(p.cachePath, snapshot); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	segments := p.Segments(context.Background(), credentials.Credentials{BaseURL: server.URL, AuthToken: "t"})
	if requests != 1 {
		t.Fatalf("fetch invoked %d times, want 1", requests)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments from refetch, want 2", len(segments))
	}
}

func TestNon2xxYieldsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := testProvider(t)
	if segments := p.Segments(context.Background(), credentials.Credentials{BaseURL: server.URL, AuthToken: "t"}); segments != nil {
		t.Fatalf("segments = %+v, want nil on HTTP 500", segments)
	}
}

func TestUnparseableEndpointYieldsNothing(t *testing.T) {
	p := testProvider(t)
	if segments := p.Segments(context.Background(), credentials.Credentials{BaseURL: "not a url", AuthToken: "t"}); segments != nil {
		t.Fatalf("segments = %+v, want nil for a bad endpoint", segments)
	}
}

func TestRenderEmptySnapshot(t *testing.T) {
	if segments := Render(&Snapshot{Timestamp: time.Now()}); len(segments) != 0 {
		t.Fatalf("Render(empty) = %+v, want no segments", segments)
	}
}

func TestRenderAlertThreshold(t *testing.T) {
	segments := Render(&Snapshot{TokenLimit: &Limit{Percentage: 80}})
	if len(segments) != 1 || segments[0].Color != render.Red {
		t.Fatalf("Render(80%%) = %+v, want alert color", segments)
	}
}
