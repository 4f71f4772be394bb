// Package httptransport assembles the public router: lookup endpoints,
// health, and metrics, behind the shared middleware stack.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"companyhub/internal/company/handler"
	"companyhub/internal/platform/middleware"
	"companyhub/pkg/platform/httputil"
)

// HealthCheck probes one dependency; nil error means healthy.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries router-level settings and optional dependency probes.
type RouterConfig struct {
	Logger     *slog.Logger
	InboundRPS float64
	Health     map[string]HealthCheck
}

// NewRouter wires all public endpoints behind the middleware stack.
func NewRouter(h *handler.Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.InboundRPS > 0 {
		r.Use(middleware.Throttle(cfg.InboundRPS))
	}

	h.Register(r)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
