// Package metrics exposes Prometheus collectors for streaming sessions and
// schema inference.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mongonexus"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	// SessionsTotal counts streaming sessions by terminal state.
	SessionsTotal *prometheus.CounterVec
	// DocumentsStreamed counts documents delivered in Batch events.
	DocumentsStreamed prometheus.Counter
	// BatchPullDuration is the latency of one cursor pull.
	BatchPullDuration prometheus.Histogram
	// SchemaDuration is the latency of one collection inference.
	SchemaDuration *prometheus.HistogramVec
	// DocumentsSampled counts documents fed to the schema merger.
	DocumentsSampled prometheus.Counter
	// HTTPRequests counts API requests by route and status.
	HTTPRequests *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_sessions_total",
				Help:      "Streaming sessions by terminal state",
			},
			[]string{"state"},
		),
		DocumentsStreamed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_documents_total",
			Help:      "Documents delivered to stream consumers",
		}),
		BatchPullDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_batch_pull_seconds",
			Help:      "Cursor pull latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SchemaDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "schema_inference_seconds",
				Help:      "Schema inference latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		DocumentsSampled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_documents_sampled_total",
			Help:      "Documents sampled for schema inference",
		}),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// SessionFinished records a session reaching a terminal state.
func (m *Metrics) SessionFinished(state string) {
	m.SessionsTotal.WithLabelValues(state).Inc()
}

// BatchPulled records one cursor pull.
func (m *Metrics) BatchPulled(docs int, took time.Duration) {
	m.BatchPullDuration.Observe(took.Seconds())
	m.DocumentsStreamed.Add(float64(docs))
}

// SchemaInferred records one collection inference.
func (m *Metrics) SchemaInferred(docs int, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SchemaDuration.WithLabelValues(status).Observe(took.Seconds())
	m.DocumentsSampled.Add(float64(docs))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
