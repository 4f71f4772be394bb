package mf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"companyhub/internal/providers"
	"companyhub/internal/providers/ratelimit"
	"companyhub/pkg/apperrors"
	id "companyhub/pkg/domain"
	"companyhub/pkg/requestcontext"
)

// Source is the name this provider reports in cache records and metadata.
const Source = "mf"

// The whitelist API allows one request per second per caller.
const requestsPerSecond = 1.0

// Config carries the whitelist endpoint settings.
type Config struct {
	APIURL  string
	Timeout time.Duration
}

// Provider is the stateless VAT whitelist source. No session, one GET per
// fetch, a fixed one-per-second limiter.
type Provider struct {
	mu      sync.Mutex
	client  *HTTPClient
	parser  *Parser
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

// New wires the REST client and interval limiter. enricher may be nil to
// disable bank account enrichment.
func New(cfg Config, enricher Enricher, logger *slog.Logger) *Provider {
	return &Provider{
		client:  NewHTTPClient(cfg.APIURL, cfg.Timeout, logger),
		parser:  NewParser(enricher, logger),
		limiter: ratelimit.NewInterval(requestsPerSecond),
		logger:  logger,
	}
}

func (p *Provider) Name() string { return Source }

func (p *Provider) ValidateIdentifier(identifier string) bool {
	return id.ValidNIP(identifier)
}

func (p *Provider) IsRateLimited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.IsLimited()
}

func (p *Provider) NextAvailableAt() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.NextAvailable()
}

// FetchData looks the NIP up in the whitelist for today's date. Registry
// misses are successful payloads with found=false; only transport failures
// and denial by the limiter are errors.
func (p *Provider) FetchData(ctx context.Context, identifier string) (providers.Payload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ValidateIdentifier(identifier) {
		return nil, apperrors.New(apperrors.CodeValidation, Source, "invalid NIP: "+identifier)
	}
	if p.limiter.IsLimited() {
		return nil, apperrors.RateLimited(Source, p.limiter.NextAvailable())
	}
	p.limiter.RecordRequest()

	date := requestcontext.Now(ctx).UTC().Format("2006-01-02")

	resp, err := p.client.SearchByNIP(ctx, identifier, date)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		p.logger.InfoContext(ctx, "whitelist miss", "nip", identifier, "reason", resp.Message)
		return p.parser.NotFound(ctx, identifier, date, resp.Message), nil
	}
	return p.parser.Parse(ctx, resp.Data, identifier, date), nil
}
