// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSubsystem prefixes every ingestion metric.
const MetricsSubsystem = "ingest"

// Metrics holds the ingestion collectors.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Malformed     *prometheus.CounterVec
	StoreErrors   *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
}

// New creates and registers the ingestion metrics on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: MetricsSubsystem,
			Name:      "outcomes_total",
			Help:      "Articles processed, by source and outcome",
		}, []string{"source", "outcome"}),
		Malformed: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: MetricsSubsystem,
			Name:      "malformed_total",
			Help:      "Raw articles dropped as malformed",
		}, []string{"source"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: MetricsSubsystem,
			Name:      "store_errors_total",
			Help:      "Persistence failures by operation",
		}, []string{"op"}),
		PublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: MetricsSubsystem,
			Name:      "publish_errors_total",
			Help:      "Outcome events that failed to publish",
		}, []string{"publisher"}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: MetricsSubsystem,
			Name:      "source_batch_duration_seconds",
			Help:      "Time spent ingesting one source's share of a batch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

// Outcome counts one processed article.
func (m *Metrics) Outcome(source, outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(source, outcome).Inc()
}

// MalformedArticle counts one dropped article.
func (m *Metrics) MalformedArticle(source string) {
	if m == nil {
		return
	}
	m.Malformed.WithLabelValues(source).Inc()
}

// StoreError counts one failed persistence call.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

// PublishError counts one failed publish.
func (m *Metrics) PublishError(publisher string) {
	if m == nil {
		return
	}
	m.PublishErrors.WithLabelValues(publisher).Inc()
}

// ObserveBatch records how long one source worker ran.
func (m *Metrics) ObserveBatch(source string, seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(source).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
