// Package provider defines the usage-quota provider contract and the ordered
// registry that picks one for the session endpoint. The provider set is
// fixed at compile time; there is no dynamic discovery.
package provider

import (
	"context"
	"time"

	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/render"
)

const (
	// CacheTTL bounds how long a cached quota snapshot may be served before
	// a provider fetches again.
	CacheTTL = 3 * time.Minute
	// FetchTimeout bounds the single GET a provider issues on a cache miss.
	FetchTimeout = 3 * time.Second
)

// Provider is a vendor-specific quota integration.
type Provider interface {
	// Name returns the provider identifier, e.g. "zhipu".
	Name() string

	// Matches reports whether the session endpoint belongs to this vendor.
	// The check is a case-sensitive substring match, not host parsing.
	Matches(baseURL string) bool

	// Segments produces the provider's status segments for the given
	// credentials. It returns nil on any failure; enrichment never errors.
	Segments(ctx context.Context, creds credentials.Credentials) []render.Segment
}

// Registry is an ordered provider list; order decides ties.
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Providers returns the registered providers in dispatch order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Select returns the first provider whose Matches accepts baseURL, or nil
// when no provider claims the endpoint (which is not an error: the session
// simply gets no enrichment).
func (r *Registry) Select(baseURL string) Provider {
	if baseURL == "" {
		return nil
	}
	for _, p := range r.providers {
		if p.Matches(baseURL) {
			return p
		}
	}
	return nil
}
