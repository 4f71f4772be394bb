package iban

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyhub/internal/cache"
	"companyhub/pkg/requestcontext"
)

const enrichmentTTL = 7 * 24 * time.Hour

func newTestCachedChain(store cache.Store, validators ...Validator) *CachedChain {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedChain(newTestChain(validators...), store, enrichmentTTL, logger)
}

func ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// ============================================================
// Cache behavior
// ============================================================

func TestCachedChainServesSecondLookupFromCache(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	validator := &fakeValidator{name: "ibanapi_com", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "Santander Bank Polska", BIC: "WBKPPLPP"},
	}}
	cached := newTestCachedChain(cache.NewMemory(), validator)

	first := cached.Enrich(ctxAt(now), testIBAN)
	second := cached.Enrich(ctxAt(now.Add(time.Hour)), testIBAN)

	assert.Equal(t, int64(1), validator.calls.Load())
	require.True(t, second.Available)
	assert.Equal(t, "Santander Bank Polska", second.Details.BankName)
	assert.Equal(t, "ibanapi_com", second.Source)
	require.NotNil(t, second.EnrichedAt)
	assert.Equal(t, *first.EnrichedAt, *second.EnrichedAt)
}

func TestCachedChainExpiredRecordRefetches(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	validator := &fakeValidator{name: "ibanapi_com", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "Santander Bank Polska"},
	}}
	cached := newTestCachedChain(cache.NewMemory(), validator)

	cached.Enrich(ctxAt(now), testIBAN)
	enr := cached.Enrich(ctxAt(now.Add(enrichmentTTL)), testIBAN)

	assert.Equal(t, int64(2), validator.calls.Load())
	assert.True(t, enr.Available)
}

func TestCachedChainDoesNotCacheUnavailableResults(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	validator := &fakeValidator{name: "ibanapi_com", err: errors.New("connect timeout")}
	cached := newTestCachedChain(cache.NewMemory(), validator)

	first := cached.Enrich(ctxAt(now), testIBAN)
	second := cached.Enrich(ctxAt(now.Add(time.Minute)), testIBAN)

	assert.Equal(t, int64(2), validator.calls.Load(), "failed enrichments retry on the next refresh")
	assert.False(t, first.Available)
	assert.False(t, second.Available)
}

func TestCachedChainNormalizesAccountKey(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	validator := &fakeValidator{name: "ibanapi_com", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "Santander Bank Polska"},
	}}
	cached := newTestCachedChain(cache.NewMemory(), validator)

	spaced := cached.Enrich(ctxAt(now), "pl61 1090 1014 0000 0712 1981 2874")
	bare := cached.Enrich(ctxAt(now), testIBAN)

	assert.Equal(t, int64(1), validator.calls.Load(), "spacing and case share one cache entry")
	assert.Equal(t, "pl61 1090 1014 0000 0712 1981 2874", spaced.AccountNumber)
	assert.Equal(t, testIBAN, bare.AccountNumber)
	assert.Equal(t, testIBAN, bare.FormattedIBAN)
}

func TestCachedChainBatchUsesCache(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	validator := &fakeValidator{name: "ibanapi_com", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "Santander Bank Polska"},
	}}
	cached := newTestCachedChain(cache.NewMemory(), validator)

	cached.Enrich(ctxAt(now), testIBAN)
	results := cached.EnrichAll(ctxAt(now), []string{testIBAN})

	assert.Equal(t, int64(1), validator.calls.Load())
	require.Contains(t, results, testIBAN)
	assert.True(t, results[testIBAN].Available)
}
