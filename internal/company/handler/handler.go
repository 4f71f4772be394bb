// Package handler wires the company lookup endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"companyhub/internal/company"
	"companyhub/pkg/apperrors"
	"companyhub/pkg/platform/httputil"
	"companyhub/pkg/requestcontext"
)

// Service defines the lookup operation the handler delegates to.
type Service interface {
	Lookup(ctx context.Context, req company.LookupRequest) (company.LookupResult, error)
}

// Handler is the thin HTTP layer over the lookup service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a company handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts company endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/v1/companies/{nip}", h.HandleLookup)
}

// LookupResponse is the success envelope.
type LookupResponse struct {
	Data     map[string]any                `json:"data"`
	Metadata map[string]company.SourceMeta `json:"metadata"`
}

// HandleLookup handles GET /api/v1/companies/{nip}.
//
// Query parameters: refresh is a comma-separated list of sources whose cache
// is bypassed; partial=allow keeps the response 200 when a source is rate
// limited with nothing cached.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req := company.LookupRequest{
		NIP:          chi.URLParam(r, "nip"),
		Refresh:      splitSources(r.URL.Query().Get("refresh")),
		AllowPartial: r.URL.Query().Get("partial") == "allow",
	}

	result, err := h.service.Lookup(ctx, req)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeRateLimited) {
			h.writeRateLimited(w, err, result)
			return
		}
		h.logger.ErrorContext(ctx, "company lookup failed",
			"request_id", requestID,
			"nip", req.NIP,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "company lookup",
		"request_id", requestID,
		"nip", result.NIP,
		"statuses", statusSummary(result),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, LookupResponse{
		Data:     dataEnvelope(result),
		Metadata: result.Metadata,
	})
}

// writeRateLimited renders the 429 envelope: the error fields plus whatever
// data and metadata the other sources still produced.
func (h *Handler) writeRateLimited(w http.ResponseWriter, err error, result company.LookupResult) {
	message := "rate limit exceeded"
	if coded, ok := apperrors.AsError(err); ok {
		message = coded.Message
		if coded.NextAvailableAt != nil {
			w.Header().Set("Retry-After", coded.NextAvailableAt.UTC().Format(http.TimeFormat))
		}
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorBody{
		Error:    string(apperrors.CodeRateLimited),
		Message:  message,
		Data:     dataEnvelope(result),
		Metadata: result.Metadata,
	})
}

func dataEnvelope(result company.LookupResult) map[string]any {
	data := map[string]any{"nip": result.NIP}
	for source, payload := range result.Data {
		if payload == nil {
			data[source] = nil
			continue
		}
		data[source] = payload
	}
	return data
}

func statusSummary(result company.LookupResult) string {
	parts := make([]string, 0, len(result.Metadata))
	for source, meta := range result.Metadata {
		parts = append(parts, source+"="+string(meta.Status))
	}
	return strings.Join(parts, ",")
}

func splitSources(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
