// Package metrics exposes the coordinator's process metrics through
// Prometheus's client library: queue depth, proof latency, and per-backend
// error counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the coordinator records. A single Registry
// is constructed at startup and passed to whichever components emit
// metrics (syncagent, dispatch, backend).
type Registry struct {
	reg *prometheus.Registry

	QueueDepth       prometheus.Gauge
	ProofDuration    *prometheus.HistogramVec
	BackendErrors    *prometheus.CounterVec
	ProposalsTracked prometheus.Gauge
	CacheHits        prometheus.Counter
}

// NewRegistry constructs a Registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kailua",
			Name:      "proof_queue_depth",
			Help:      "Number of proof requests currently queued or in flight.",
		}),
		ProofDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kailua",
			Name:      "proof_duration_seconds",
			Help:      "Wall-clock time to produce a proof, by backend.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"backend"}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kailua",
			Name:      "backend_errors_total",
			Help:      "Errors returned by a proving backend, by backend and error kind.",
		}, []string{"backend", "kind"}),
		ProposalsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kailua",
			Name:      "proposals_tracked",
			Help:      "Number of proposals currently held in the sync agent's map.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kailua",
			Name:      "proof_cache_hits_total",
			Help:      "Proof requests resolved from the on-disk proof cache.",
		}),
	}
}

// Handler returns an http.Handler serving this Registry in the Prometheus
// exposition format, suitable for mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
