package regon

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
const Source = "regon"

// Config carries the BIR endpoint settings.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Provider is the stateful BIR source. Fetches are serialized: the limiter
// and session are per-provider mutable state shared by all requests.
type Provider struct {
	mu      sync.Mutex
	client  *APIClient
	session *SessionManager
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

// New wires the SOAP transport, session manager, and banded limiter.
func New(cfg Config, logger *slog.Logger) *Provider {
	soap := NewSoapClient(cfg.APIURL, cfg.Timeout, logger)
	session := NewSessionManager(soap, cfg.APIKey, logger)
	return &Provider{
		client:  NewAPIClient(soap, session),
		session: session,
		limiter: ratelimit.NewBanded(),
		logger:  logger,
	}
}

func (p *Provider) Name() string { return Source }

func (p *Provider) ValidateIdentifier(identifier string) bool {
	return id.ValidNIP(identifier)
}

func (p *Provider) IsRateLimited() bool { return p.limiter.IsLimited() }

func (p *Provider) NextAvailableAt() *time.Time { return p.limiter.NextAvailable() }

// FetchData performs the two-step cycle: search by NIP to learn the REGON
// number and entity type, then pull the matching detailed report. A failed
// report degrades to the basic search payload rather than failing the fetch.
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

	inner, err := p.client.SearchByNIP(ctx, identifier)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := parseSearchXML(inner)
	payload := basicInfo(identifier, result, now)
	if !result.Found {
		return payload, nil
	}

	regonNumber, _ := payload["regon"].(string)
	if regonNumber == "" {
		return payload, nil
	}

	reportName := ReportName(MapEntityType(result.Fields["Typ"]))
	reportInner, err := p.client.FullReport(ctx, regonNumber, reportName)
	if err != nil {
		p.logger.WarnContext(ctx, "detailed report failed, returning basic info",
			"source", Source,
			"regon", regonNumber,
			"error", err,
		)
		payload["detailed_error"] = err.Error()
		return payload, nil
	}

	payload["detailed_data"] = parseReportXML(reportInner, reportName)
	payload["report_type"] = reportName
	return payload, nil
}
