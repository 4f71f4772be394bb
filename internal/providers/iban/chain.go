package iban

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"companyhub/pkg/requestcontext"
)

// Validator is one IBAN validation service. Implementations return a result
// even for invalid IBANs; errors mean the service itself failed.
type Validator interface {
	Name() string
	Validate(ctx context.Context, iban string) (ValidationResult, error)
}

// Caps concurrent account enrichments in the batch path.
const batchConcurrency = 8

// Chain tries validators in a fixed priority order (cheapest and most
// complete first) and accepts the first result that is valid AND carries at
// least one bank-detail field. A validator failing, or confirming validity
// without details, moves the chain to the next entry.
type Chain struct {
	validators  []Validator
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewChain creates a chain over validators in the given priority order.
func NewChain(callTimeout time.Duration, logger *slog.Logger, validators ...Validator) *Chain {
	return &Chain{
		validators:  validators,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Enrich resolves bank metadata for one account number. It never returns an
// error: accounts that cannot be enriched come back as an unavailable record
// carrying the best-known validity flag and a reason.
func (c *Chain) Enrich(ctx context.Context, account string) Enrichment {
	clean := strings.ToUpper(strings.ReplaceAll(account, " ", ""))
	if !validShape(clean) {
		return unavailable(account, clean, false, "invalid IBAN format")
	}

	validConfirmed := false
	for _, v := range c.validators {
		result, err := c.callValidator(ctx, v, clean)
		if err != nil {
			c.logger.WarnContext(ctx, "iban validator failed, trying next",
				"validator", v.Name(),
				"error", err,
			)
			continue
		}
		if result.Valid && result.Details != nil && !result.Details.Empty() {
			now := requestcontext.Now(ctx)
			return Enrichment{
				AccountNumber: account,
				FormattedIBAN: clean,
				Validated:     true,
				Details:       result.Details,
				Source:        result.Source,
				EnrichedAt:    &now,
				Available:     true,
			}
		}
		if result.Valid {
			// Valid but no bank details: remember the flag, keep trying.
			validConfirmed = true
		}
	}

	return unavailable(account, clean, validConfirmed, "enrichment sources unavailable")
}

// EnrichAll enriches account numbers independently and concurrently. One
// account's failure never affects another's result.
func (c *Chain) EnrichAll(ctx context.Context, accounts []string) map[string]Enrichment {
	results := make(map[string]Enrichment, len(accounts))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, account := range accounts {
		g.Go(func() error {
			enr := c.Enrich(ctx, account)
			mu.Lock()
			results[account] = enr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Chain) callValidator(ctx context.Context, v Validator, iban string) (ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return v.Validate(ctx, iban)
}

// validShape is the minimal IBAN check: 15-34 characters, two leading
// letters, then two digits.
func validShape(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	for i := 0; i < 2; i++ {
		if iban[i] < 'A' || iban[i] > 'Z' {
			return false
		}
	}
	for i := 2; i < 4; i++ {
		if iban[i] < '0' || iban[i] > '9' {
			return false
		}
	}
	return true
}

func unavailable(account, clean string, valid bool, reason string) Enrichment {
	return Enrichment{
		AccountNumber: account,
		FormattedIBAN: clean,
		Validated:     valid,
		Available:     false,
		Reason:        reason,
	}
}

// FormatAsIBAN prefixes the country code only when absent; accounts from the
// whitelist registry arrive as bare domestic numbers.
func FormatAsIBAN(account, countryCode string) string {
	clean := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(account, " ", "")))
	if strings.HasPrefix(clean, countryCode) {
		return clean
	}
	return countryCode + clean
}
