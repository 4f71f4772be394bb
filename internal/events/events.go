// Package events emits change notifications when a fresh fetch returns data
// that differs from what was previously cached. Delivery to subscribers is
// outside this service; the event stream is the integration point.
package events

import (
	"context"
	"time"

	"companyhub/internal/providers"
)

// CompanyDataChanged records that one source's payload for a NIP changed.
type CompanyDataChanged struct {
	NIP        string            `json:"nip"`
	Source     string            `json:"source"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    providers.Payload `json:"payload"`
}

// Publisher is the event sink contract. Publish failures are logged by the
// caller and never fail the originating request.
type Publisher interface {
	Publish(ctx context.Context, event CompanyDataChanged) error
	Close()
}
