// Package providers defines the contract every registry source implements
// and the registry the orchestrator iterates.
package providers

import (
	"context"
	"time"
)

// Payload is the normalized, source-shaped result of one fetch. It is stored
// opaquely by the cache layer and rendered as-is in responses.
type Payload map[string]any

// Provider is the capability interface implemented once per source. Fetches
// within one provider are serialized by the provider itself because the
// limiter state (and, for the stateful source, the session) is shared
// mutable state; the orchestrator may call distinct providers concurrently.
type Provider interface {
	// Name returns the source identifier used in requests, cache records, and
	// response metadata ("regon", "mf").
	Name() string

	// ValidateIdentifier reports whether the identifier is acceptable to this
	// source.
	ValidateIdentifier(id string) bool

	// IsRateLimited reports whether a fetch right now would be denied.
	IsRateLimited() bool

	// NextAvailableAt returns when the source opens again, nil when unlimited.
	NextAvailableAt() *time.Time

	// FetchData performs one fetch cycle against the source. It returns
	// apperrors coded errors: rate_limited when admission is denied,
	// validation for malformed identifiers, provider/session for upstream
	// failures.
	FetchData(ctx context.Context, id string) (Payload, error)
}

// Registry holds providers in a fixed iteration order.
type Registry struct {
	order  []string
	byName map[string]Provider
}

// NewRegistry creates a registry preserving registration order.
func NewRegistry(provs ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(provs))}
	for _, p := range provs {
		if _, exists := r.byName[p.Name()]; exists {
			continue
		}
		r.order = append(r.order, p.Name())
		r.byName[p.Name()] = p
	}
	return r
}

// Get retrieves a provider by source name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns the source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
