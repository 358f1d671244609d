package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/render"
)

type fakeProvider struct {
	name     string
	fragment string
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Matches(baseURL string) bool {
	return strings.Contains(baseURL, f.fragment)
}

func (f fakeProvider) Segments(context.Context, credentials.Credentials) []render.Segment {
	return nil
}

func TestSelectFirstMatchWins(t *testing.T) {
	// Both providers match "shared"; order must decide.
	registry := NewRegistry(
		fakeProvider{name: "first", fragment: "shared"},
		fakeProvider{name: "second", fragment: "shared"},
	)
	got := registry.Select("https://shared.example/v1")
	if got == nil || got.Name() != "first" {
		t.Fatalf("Select() = %v, want first", got)
	}
}

func TestSelectByFragment(t *testing.T) {
	registry := NewRegistry(
		fakeProvider{name: "a", fragment: "vendor-a.cn"},
		fakeProvider{name: "b", fragment: "vendor-b.cfd"},
	)
	got := registry.Select("https://api.vendor-b.cfd/v1")
	if got == nil || got.Name() != "b" {
		t.Fatalf("Select() = %v, want b", got)
	}
}

func TestSelectNoMatch(t *testing.T) {
	registry := NewRegistry(fakeProvider{name: "a", fragment: "vendor-a.cn"})
	if got := registry.Select("https://api.anthropic.com"); got != nil {
		t.Fatalf("Select() = %v, want nil", got.Name())
	}
}

func TestSelectEmptyEndpoint(t *testing.T) {
	registry := NewRegistry(fakeProvider{name: "a", fragment: ""})
	if got := registry.Select(""); got != nil {
		t.Fatalf("Select(\"\") = %v, want nil", got.Name())
	}
}
