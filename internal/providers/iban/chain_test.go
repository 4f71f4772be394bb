package iban

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIBAN = "PL61109010140000071219812874"

type fakeValidator struct {
	name   string
	result ValidationResult
	err    error
	calls  atomic.Int64
}

func (f *fakeValidator) Name() string { return f.name }

func (f *fakeValidator) Validate(_ context.Context, iban string) (ValidationResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ValidationResult{}, f.err
	}
	res := f.result
	res.IBAN = iban
	res.Source = f.name
	return res, nil
}

func newTestChain(validators ...Validator) *Chain {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChain(2*time.Second, logger, validators...)
}

// ============================================================
// Fallback order
// ============================================================

func TestChainFallsThroughToThirdSource(t *testing.T) {
	first := &fakeValidator{name: "ibanapi_com", err: errors.New("connect timeout")}
	second := &fakeValidator{name: "openiban", result: ValidationResult{Valid: true}}
	third := &fakeValidator{name: "apilayer_api", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "Santander Bank Polska", BIC: "WBKPPLPP"},
	}}

	enr := newTestChain(first, second, third).Enrich(context.Background(), testIBAN)

	require.True(t, enr.Available)
	assert.Equal(t, "apilayer_api", enr.Source)
	assert.Equal(t, "Santander Bank Polska", enr.Details.BankName)
	assert.True(t, enr.Validated)
	// Earlier failures leave no trace in the final record.
	assert.Empty(t, enr.Reason)
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(1), second.calls.Load())
	assert.Equal(t, int64(1), third.calls.Load())
}

func TestChainStopsAtFirstSourceWithDetails(t *testing.T) {
	first := &fakeValidator{name: "ibanapi_com", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "mBank", City: "Warszawa"},
	}}
	second := &fakeValidator{name: "openiban", result: ValidationResult{Valid: true}}

	enr := newTestChain(first, second).Enrich(context.Background(), testIBAN)

	require.True(t, enr.Available)
	assert.Equal(t, "ibanapi_com", enr.Source)
	assert.Equal(t, int64(0), second.calls.Load())
}

func TestChainValidWithoutDetailsDoesNotShortCircuit(t *testing.T) {
	// A source confirming validity with an empty details struct must not
	// stop the chain.
	first := &fakeValidator{name: "openiban", result: ValidationResult{Valid: true, Details: &BankDetails{}}}
	second := &fakeValidator{name: "apilayer_api", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankCode: "1090"},
	}}

	enr := newTestChain(first, second).Enrich(context.Background(), testIBAN)

	require.True(t, enr.Available)
	assert.Equal(t, "apilayer_api", enr.Source)
}

// ============================================================
// Exhausted chain
// ============================================================

func TestChainAllSourcesFailedKeepsValidityFlag(t *testing.T) {
	first := &fakeValidator{name: "ibanapi_com", err: errors.New("503")}
	second := &fakeValidator{name: "openiban", result: ValidationResult{Valid: true}}
	third := &fakeValidator{name: "apilayer_api", err: errors.New("401")}

	enr := newTestChain(first, second, third).Enrich(context.Background(), testIBAN)

	assert.False(t, enr.Available)
	assert.True(t, enr.Validated, "validity confirmed along the way must survive")
	assert.Equal(t, "enrichment sources unavailable", enr.Reason)
	assert.Empty(t, enr.Source)
	assert.Nil(t, enr.Details)
}

func TestChainInvalidShapeSkipsAllSources(t *testing.T) {
	first := &fakeValidator{name: "ibanapi_com"}

	enr := newTestChain(first).Enrich(context.Background(), "not-an-iban")

	assert.False(t, enr.Available)
	assert.False(t, enr.Validated)
	assert.Equal(t, "invalid IBAN format", enr.Reason)
	assert.Equal(t, int64(0), first.calls.Load())
}

func TestValidShape(t *testing.T) {
	cases := map[string]bool{
		"PL61109010140000071219812874": true,
		"DE89370400440532013000":       true,
		"P161109010140000071219812874": false, // digit where letter expected
		"PLX1109010140000071219812874": false, // letter where digit expected
		"PL6110901014":                 false, // too short
	}
	for iban, want := range cases {
		assert.Equal(t, want, validShape(iban), iban)
	}
}

// ============================================================
// Batch
// ============================================================

func TestEnrichAllIsolatesAccounts(t *testing.T) {
	good := &fakeValidator{name: "openiban", result: ValidationResult{
		Valid:   true,
		Details: &BankDetails{BankName: "PKO BP"},
	}}
	chain := newTestChain(good)

	accounts := []string{testIBAN, "bogus", "DE89370400440532013000"}
	results := chain.EnrichAll(context.Background(), accounts)

	require.Len(t, results, 3)
	assert.True(t, results[testIBAN].Available)
	assert.False(t, results["bogus"].Available)
	assert.True(t, results["DE89370400440532013000"].Available)
}

// ============================================================
// Formatting
// ============================================================

func TestFormatAsIBAN(t *testing.T) {
	assert.Equal(t, "PL61109010140000071219812874", FormatAsIBAN("61109010140000071219812874", "PL"))
	assert.Equal(t, "PL61109010140000071219812874", FormatAsIBAN("PL61109010140000071219812874", "PL"))
	assert.Equal(t, "PL61109010140000071219812874", FormatAsIBAN(" pl61 1090 1014 0000 0712 1981 2874 ", "PL"))
}
