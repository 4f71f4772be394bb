package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyhub/internal/providers"
)

func record(nip, source string, fetchedAt time.Time, ttl time.Duration) Record {
	return Record{
		NIP:       nip,
		Source:    source,
		Payload:   providers.Payload{"found": true, "nip": nip},
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(ttl),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := store.Latest(ctx, "5260250274", "regon")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, record("5260250274", "regon", now, time.Hour)))

	got, err := store.Latest(ctx, "5260250274", "regon")
	require.NoError(t, err)
	assert.Equal(t, "5260250274", got.NIP)
	assert.Equal(t, providers.Payload{"found": true, "nip": "5260250274"}, got.Payload)

	// Same NIP, different source is a distinct record.
	_, err = store.Latest(ctx, "5260250274", "mf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiredRecordStaysReadable(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	fetched := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, record("5260250274", "regon", fetched, time.Hour)))

	got, err := store.Latest(ctx, "5260250274", "regon")
	require.NoError(t, err, "expired records are served for stale fallback")
	assert.True(t, got.Expired(fetched.Add(2*time.Hour)))
}

func TestMemoryStoreLastWriteWinsByFetchTime(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	newer := record("5260250274", "regon", now, time.Hour)
	newer.Payload = providers.Payload{"name": "newer"}
	older := record("5260250274", "regon", now.Add(-time.Hour), time.Hour)
	older.Payload = providers.Payload{"name": "older"}

	require.NoError(t, store.Save(ctx, newer))
	require.NoError(t, store.Save(ctx, older))

	got, err := store.Latest(ctx, "5260250274", "regon")
	require.NoError(t, err)
	assert.Equal(t, "newer", got.Payload["name"], "an older fetch never overwrites a newer one")
}

func TestRecordExpiredBoundary(t *testing.T) {
	expiry := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	r := Record{ExpiresAt: expiry}

	assert.False(t, r.Expired(expiry.Add(-time.Nanosecond)))
	assert.True(t, r.Expired(expiry), "a record expiring exactly now is expired")
	assert.True(t, r.Expired(expiry.Add(time.Nanosecond)))
}
