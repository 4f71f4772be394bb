// Package cache persists per-source fetch results. Records are kept past
// their expiry so the orchestrator can fall back to stale data when a source
// is rate limited.
package cache

import (
	"context"
	"errors"
	"time"

	"companyhub/internal/providers"
)

// ErrNotFound is returned when no record exists for the nip/source pair.
var ErrNotFound = errors.New("cache: record not found")

// Record is one cached fetch result for one source.
type Record struct {
	NIP       string            `json:"nip"`
	Source    string            `json:"source"`
	Payload   providers.Payload `json:"payload"`
	FetchedAt time.Time         `json:"fetched_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the record is past its TTL. A record expiring
// exactly now counts as expired.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store is the cache persistence contract. Latest returns the most recent
// record regardless of expiry; the caller decides whether stale data is
// acceptable.
type Store interface {
	Save(ctx context.Context, record Record) error
	Latest(ctx context.Context, nip, source string) (Record, error)
}
