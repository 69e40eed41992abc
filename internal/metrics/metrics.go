// Package metrics exposes scraper and relay counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_scraper"

type Metrics struct {
	registry *prometheus.Registry

	Outcomes     *prometheus.CounterVec
	FieldSources *prometheus.CounterVec
	Duration     prometheus.Histogram
	Published    *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_total",
			Help:      "Products that left the pipeline, by final state.",
		}, []string{"state"}),
		FieldSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_extractions_total",
			Help:      "Extracted fields by the strategy that produced them.",
		}, []string{"field", "source"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "product_duration_seconds",
			Help:      "Time spent on one product page.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published to Redis streams.",
		}, []string{"stream", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		m.Outcomes,
		m.FieldSources,
		m.Duration,
		m.Published,
		m.HTTPRequests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome records one pipeline result.
func (m *Metrics) ObserveOutcome(state string, sources map[string]string, took time.Duration) {
	m.Outcomes.WithLabelValues(state).Inc()
	for field, source := range sources {
		m.FieldSources.WithLabelValues(field, source).Inc()
	}
	m.Duration.Observe(took.Seconds())
}

// ObservePublish records one relay publish attempt.
func (m *Metrics) ObservePublish(stream string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Published.WithLabelValues(stream, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
