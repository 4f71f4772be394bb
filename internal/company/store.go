package company

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no company exists for the NIP.
var ErrNotFound = errors.New("company: not found")

// Store persists tracked companies. GetOrCreate is idempotent per NIP;
// SetName backfills the name once a source reports one.
type Store interface {
	GetOrCreate(ctx context.Context, nip string) (Company, error)
	FindByNIP(ctx context.Context, nip string) (Company, error)
	SetName(ctx context.Context, nip, name string) error
}
