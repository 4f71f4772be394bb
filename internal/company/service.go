package company

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"companyhub/internal/cache"
	"companyhub/internal/company/metrics"
	"companyhub/internal/events"
	"companyhub/internal/providers"
	"companyhub/pkg/apperrors"
	id "companyhub/pkg/domain"
	"companyhub/pkg/requestcontext"
)

// DefaultTTL bounds how long a fetched record counts as current.
const DefaultTTL = 24 * time.Hour

// Service runs the per-source lookup flow and composes the result. Sources
// are resolved concurrently; each source's failure, rate limit, or cache
// state is confined to its own metadata entry.
type Service struct {
	registry  *providers.Registry
	cache     cache.Store
	companies Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	ttls      map[string]time.Duration
	ttl       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches lookup metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher attaches the change-event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTTL overrides the cache TTL for one source.
func WithTTL(source string, ttl time.Duration) Option {
	return func(s *Service) { s.ttls[source] = ttl }
}

// WithDefaultTTL overrides the cache TTL for sources without a specific one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// NewService wires the lookup service.
func NewService(registry *providers.Registry, cacheStore cache.Store, companies Store, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		cache:     cacheStore,
		companies: companies,
		logger:    slog.Default(),
		ttls:      make(map[string]time.Duration),
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Lookup resolves all registered sources for one NIP. The result always
// carries metadata for every source. When any source's refresh was denied by
// a rate limit and the request did not opt into partial results, the
// returned error is a rate-limit error; the result still carries whatever
// data was gathered, including stale cache served for the denied source.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	nip, err := id.ParseNIP(req.NIP)
	if err != nil {
		return LookupResult{}, apperrors.New(apperrors.CodeValidation, "request", err.Error())
	}

	if s.companies != nil {
		if _, err := s.companies.GetOrCreate(ctx, string(nip)); err != nil {
			s.logger.WarnContext(ctx, "company get-or-create failed", "nip", nip, "error", err)
		}
	}

	result := LookupResult{
		NIP:      string(nip),
		Data:     make(map[string]providers.Payload),
		Metadata: make(map[string]SourceMeta),
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		results = make(map[string]sourceOutcome, len(s.registry.Names()))
		mu      sync.Mutex
	)
	for _, source := range s.registry.Names() {
		provider, ok := s.registry.Get(source)
		if !ok {
			continue
		}
		g.Go(func() error {
			outcome := s.resolveSource(gctx, provider, string(nip), req.ForcesRefresh(source))
			mu.Lock()
			results[source] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for source, outcome := range results {
		result.Data[source] = outcome.payload
		result.Metadata[source] = outcome.meta
		s.metrics.IncrementStatus(source, string(outcome.meta.Status))
	}

	if blocked := result.RateLimited(); len(blocked) > 0 && !req.AllowPartial {
		sort.Strings(blocked)
		return result, apperrors.RateLimited(strings.Join(blocked, ","), earliestRetry(result.Metadata, blocked))
	}
	return result, nil
}

type sourceOutcome struct {
	payload providers.Payload
	meta    SourceMeta
}

// resolveSource runs the decision ladder for one source: current cache
// unless refresh is forced, then rate-limit fallback, then a live fetch.
func (s *Service) resolveSource(ctx context.Context, provider providers.Provider, nip string, forced bool) sourceOutcome {
	source := provider.Name()
	now := requestcontext.Now(ctx)

	var cached *cache.Record
	if rec, err := s.cache.Latest(ctx, nip, source); err == nil {
		cached = &rec
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WarnContext(ctx, "cache read failed", "source", source, "nip", nip, "error", err)
	}

	if !forced && cached != nil && !cached.Expired(now) {
		s.metrics.IncrementCache(source, "hit")
		fetchedAt := cached.FetchedAt
		return sourceOutcome{
			payload: cached.Payload,
			meta:    SourceMeta{Status: StatusCached, FetchedAt: &fetchedAt},
		}
	}
	s.metrics.IncrementCache(source, "miss")

	if provider.IsRateLimited() {
		return s.limitedOutcome(source, cached, provider.NextAvailableAt())
	}

	start := time.Now()
	payload, err := provider.FetchData(ctx, nip)
	s.metrics.ObserveFetchLatency(source, time.Since(start))
	if err != nil {
		if apperrors.Is(err, apperrors.CodeRateLimited) {
			var next *time.Time
			if coded, ok := apperrors.AsError(err); ok {
				next = coded.NextAvailableAt
			}
			return s.limitedOutcome(source, cached, next)
		}
		s.logger.ErrorContext(ctx, "source fetch failed", "source", source, "nip", nip, "error", err)
		return sourceOutcome{meta: SourceMeta{Status: StatusError, ErrorMessage: err.Error()}}
	}

	record := cache.Record{
		NIP:       nip,
		Source:    source,
		Payload:   payload,
		FetchedAt: now,
		ExpiresAt: now.Add(s.ttlFor(source)),
	}
	if err := s.cache.Save(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "source", source, "nip", nip, "error", err)
	}
	s.publishIfChanged(ctx, nip, source, cached, payload)
	s.backfillName(ctx, nip, payload)

	fetchedAt := now
	return sourceOutcome{
		payload: payload,
		meta:    SourceMeta{Status: StatusFresh, FetchedAt: &fetchedAt},
	}
}

// limitedOutcome serves stale cache when the source is closed, and only
// reports a hard rate limit when there is nothing at all to serve.
func (s *Service) limitedOutcome(source string, cached *cache.Record, next *time.Time) sourceOutcome {
	if cached != nil {
		s.metrics.IncrementCache(source, "stale")
		fetchedAt := cached.FetchedAt
		return sourceOutcome{
			payload: cached.Payload,
			meta: SourceMeta{
				Status:          StatusCachedStale,
				FetchedAt:       &fetchedAt,
				NextAvailableAt: next,
			},
		}
	}
	return sourceOutcome{meta: SourceMeta{Status: StatusRateLimited, NextAvailableAt: next}}
}

func (s *Service) ttlFor(source string) time.Duration {
	if ttl, ok := s.ttls[source]; ok {
		return ttl
	}
	return s.ttl
}

// publishIfChanged emits a change event when the fresh payload materially
// differs from the previous cached one. Volatile per-fetch fields are
// excluded from the comparison; publish failures never fail the lookup.
func (s *Service) publishIfChanged(ctx context.Context, nip, source string, previous *cache.Record, payload providers.Payload) {
	if s.publisher == nil {
		return
	}
	if previous != nil && payloadsEqual(previous.Payload, payload) {
		return
	}
	event := events.CompanyDataChanged{
		NIP:        nip,
		Source:     source,
		OccurredAt: requestcontext.Now(ctx),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "change event publish failed", "source", source, "nip", nip, "error", err)
	}
}

// Per-fetch fields that differ on every call and carry no company data.
var volatileKeys = []string{"fetched_at", "request_id"}

// payloadsEqual compares payloads by canonical JSON so records read back
// from a persisted store compare equal to freshly built ones.
func payloadsEqual(a, b providers.Payload) bool {
	return bytes.Equal(canonicalJSON(a), canonicalJSON(b))
}

func canonicalJSON(p providers.Payload) []byte {
	cleaned := make(map[string]any, len(p))
	for k, v := range p {
		cleaned[k] = v
	}
	for _, k := range volatileKeys {
		delete(cleaned, k)
	}
	// Map keys marshal sorted, which makes the encoding canonical.
	out, err := json.Marshal(cleaned)
	if err != nil {
		return nil
	}
	return out
}

// backfillName records the company name the first time a source reports one.
func (s *Service) backfillName(ctx context.Context, nip string, payload providers.Payload) {
	if s.companies == nil {
		return
	}
	name, _ := payload["name"].(string)
	if strings.TrimSpace(name) == "" {
		return
	}
	existing, err := s.companies.FindByNIP(ctx, nip)
	if err != nil || existing.Name != "" {
		return
	}
	if err := s.companies.SetName(ctx, nip, name); err != nil {
		s.logger.WarnContext(ctx, "company name backfill failed", "nip", nip, "error", err)
	}
}

func earliestRetry(metadata map[string]SourceMeta, blocked []string) *time.Time {
	var earliest *time.Time
	for _, source := range blocked {
		next := metadata[source].NextAvailableAt
		if next == nil {
			continue
		}
		if earliest == nil || next.Before(*earliest) {
			earliest = next
		}
	}
	return earliest
}
