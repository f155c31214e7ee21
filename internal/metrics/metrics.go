// Package metrics exposes Prometheus collectors for chat traffic and the
// ingested index.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics owns a private registry so that several servers (and tests) can
// coexist in one process.
type Metrics struct {
	registry      *prometheus.Registry
	chatRequests  *prometheus.CounterVec
	chatDuration  prometheus.Histogram
	indexPassages prometheus.Gauge
}

// New creates the collectors and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_chat_requests_total",
				Help: "Chat requests by outcome.",
			},
			[]string{"outcome"},
		),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kotae_chat_duration_seconds",
			Help:    "Time to answer a chat request.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		indexPassages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kotae_index_passages",
			Help: "Passages held by the vector index.",
		}),
	}
	m.registry.MustRegister(
		m.chatRequests,
		m.chatDuration,
		m.indexPassages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveChat records one chat request. Only answered requests contribute to
// the duration histogram.
func (m *Metrics) ObserveChat(outcome string, elapsed time.Duration) {
	m.chatRequests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.chatDuration.Observe(elapsed.Seconds())
	}
}

// SetIndexPassages sets the index size gauge.
func (m *Metrics) SetIndexPassages(n int) {
	m.indexPassages.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
