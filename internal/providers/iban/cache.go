package iban

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"companyhub/internal/cache"
	"companyhub/internal/providers"
	"companyhub/pkg/requestcontext"
)

// cacheSource keys enrichment records in the shared cache store, alongside
// the per-registry records but under the normalized IBAN instead of a NIP.
const cacheSource = "iban_enrichment"

// CachedChain serves enrichment results from the cache store before asking
// the chain. Bank metadata changes rarely, so successful enrichments keep a
// long TTL and a company refresh does not re-query the external services.
// Unavailable results are not cached; the next refresh retries the chain.
type CachedChain struct {
	chain  *Chain
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedChain wraps chain with an enrichment cache holding results for ttl.
func NewCachedChain(chain *Chain, store cache.Store, ttl time.Duration, logger *slog.Logger) *CachedChain {
	return &CachedChain{
		chain:  chain,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Enrich resolves bank metadata for one account number, consulting the
// enrichment cache first. Spacing and case differences in the account
// number share one cache entry.
func (c *CachedChain) Enrich(ctx context.Context, account string) Enrichment {
	key := strings.ToUpper(strings.ReplaceAll(account, " ", ""))
	now := requestcontext.Now(ctx)

	if rec, err := c.store.Latest(ctx, key, cacheSource); err == nil {
		if !rec.Expired(now) {
			if enr, ok := decodeEnrichment(rec.Payload); ok {
				enr.AccountNumber = account
				return enr
			}
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		c.logger.WarnContext(ctx, "enrichment cache read failed", "iban", key, "error", err)
	}

	enr := c.chain.Enrich(ctx, account)
	if enr.Available {
		if payload := encodeEnrichment(enr); payload != nil {
			record := cache.Record{
				NIP:       key,
				Source:    cacheSource,
				Payload:   payload,
				FetchedAt: now,
				ExpiresAt: now.Add(c.ttl),
			}
			if err := c.store.Save(ctx, record); err != nil {
				c.logger.WarnContext(ctx, "enrichment cache write failed", "iban", key, "error", err)
			}
		}
	}
	return enr
}

// EnrichAll enriches account numbers independently and concurrently, each
// through the cache.
func (c *CachedChain) EnrichAll(ctx context.Context, accounts []string) map[string]Enrichment {
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

// encodeEnrichment and decodeEnrichment round-trip through JSON so cached
// records survive persisted stores unchanged.
func encodeEnrichment(e Enrichment) providers.Payload {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var payload providers.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

func decodeEnrichment(p providers.Payload) (Enrichment, bool) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Enrichment{}, false
	}
	var e Enrichment
	if err := json.Unmarshal(raw, &e); err != nil {
		return Enrichment{}, false
	}
	return e, true
}
