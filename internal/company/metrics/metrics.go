package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the company lookup module.
type Metrics struct {
	// Upstream fetch latencies by source
	FetchLatency *prometheus.HistogramVec

	// Cache outcomes by source: hit, miss, stale
	CacheEvents *prometheus.CounterVec

	// Per-source lookup statuses as reported in response metadata
	SourceStatus *prometheus.CounterVec
}

// New creates a Metrics instance with all lookup metrics registered.
func New() *Metrics {
	return &Metrics{
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "companyhub_source_fetch_duration_seconds",
			Help:    "Duration of upstream registry fetches by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),

		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companyhub_cache_events_total",
			Help: "Cache lookup outcomes by source",
		}, []string{"source", "event"}), // event: "hit", "miss", "stale"

		SourceStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companyhub_source_status_total",
			Help: "Per-source lookup statuses by source and status",
		}, []string{"source", "status"}),
	}
}

// ObserveFetchLatency records the duration of one upstream fetch.
func (m *Metrics) ObserveFetchLatency(source string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementCache records a cache outcome.
func (m *Metrics) IncrementCache(source, event string) {
	if m != nil {
		m.CacheEvents.WithLabelValues(source, event).Inc()
	}
}

// IncrementStatus records the status a source contributed to a response.
func (m *Metrics) IncrementStatus(source, status string) {
	if m != nil {
		m.SourceStatus.WithLabelValues(source, status).Inc()
	}
}
