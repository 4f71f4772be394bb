// Package company composes per-source registry data into one lookup result
// with explicit per-source status metadata.
package company

import (
	"time"

	"github.com/google/uuid"

	"companyhub/internal/providers"
)

// SourceStatus describes how one source contributed to a lookup.
type SourceStatus string

const (
	// StatusFresh: fetched from the source during this request.
	StatusFresh SourceStatus = "fresh"
	// StatusCached: served from an unexpired cache record.
	StatusCached SourceStatus = "cached"
	// StatusCachedStale: the source was rate limited but a cache record
	// (possibly expired) was available to serve.
	StatusCachedStale SourceStatus = "cached_due_to_rate_limit"
	// StatusRateLimited: the source was rate limited and nothing was cached.
	StatusRateLimited SourceStatus = "rate_limited"
	// StatusError: the fetch failed; the failure is confined to this source.
	StatusError SourceStatus = "error"
)

// SourceMeta is the per-source metadata block rendered in every response.
type SourceMeta struct {
	Status          SourceStatus `json:"status"`
	FetchedAt       *time.Time   `json:"fetched_at,omitempty"`
	NextAvailableAt *time.Time   `json:"next_available_at,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// LookupRequest is one company lookup.
type LookupRequest struct {
	NIP string

	// Refresh lists sources whose cache must be bypassed this request.
	Refresh []string

	// AllowPartial keeps a response successful when some source is rate
	// limited, instead of failing the whole request.
	AllowPartial bool
}

// ForcesRefresh reports whether source must bypass its cache.
func (r LookupRequest) ForcesRefresh(source string) bool {
	for _, s := range r.Refresh {
		if s == source {
			return true
		}
	}
	return false
}

// LookupResult is the composed answer: per-source payloads (nil when a
// source contributed nothing) plus per-source metadata.
type LookupResult struct {
	NIP      string
	Data     map[string]providers.Payload
	Metadata map[string]SourceMeta
}

// RateLimited returns the sources whose refresh was denied by a rate limit.
// A stale-cache downgrade softens the payload, not the denial: the source
// still counts as rate limited for the request-level policy.
func (r LookupResult) RateLimited() []string {
	var out []string
	for source, meta := range r.Metadata {
		if meta.Status == StatusRateLimited || meta.Status == StatusCachedStale {
			out = append(out, source)
		}
	}
	return out
}

// Company is the tracked entity a lookup attaches to, keyed by NIP.
type Company struct {
	ID        uuid.UUID
	NIP       string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
