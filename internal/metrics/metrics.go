// Package metrics defines the Prometheus collectors for index builds,
// retrieval and generation, and serves them for scraping.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sparserag/internal/domain"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BuildsTotal        *prometheus.CounterVec
	BuildDuration      prometheus.Histogram
	DocumentsIndexed   prometheus.Gauge
	VocabularySize     prometheus.Gauge
	SnapshotGeneration prometheus.Gauge
	QueriesTotal       *prometheus.CounterVec
	QueryLatency       *prometheus.HistogramVec
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GeneratedTokens    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_index_builds_total",
				Help: "Index builds by outcome (ok, empty, cancelled, error).",
			},
			[]string{"outcome"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_index_build_duration_seconds",
				Help:    "Wall time of successful index builds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		DocumentsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_index_documents",
				Help: "Documents in the published snapshot.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_index_vocabulary_size",
				Help: "Distinct tokens in the published snapshot.",
			},
		),
		SnapshotGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_index_generation",
				Help: "Generation number of the published snapshot.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_queries_total",
				Help: "Retrieval queries by result (hit, zero_result, not_ready, error).",
			},
			[]string{"result"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_query_latency_seconds",
				Help:    "Retrieval latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"cache_status"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_generations_total",
				Help: "Generation calls by outcome (completed, failed, cancelled).",
			},
			[]string{"outcome"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_generation_duration_seconds",
				Help:    "Wall time of completed generation calls.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		GeneratedTokens: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_generated_tokens_total",
				Help: "Approximate tokens received from the generation backend.",
			},
		),
	}

	reg.MustRegister(
		m.BuildsTotal,
		m.BuildDuration,
		m.DocumentsIndexed,
		m.VocabularySize,
		m.SnapshotGeneration,
		m.QueriesTotal,
		m.QueryLatency,
		m.GenerationsTotal,
		m.GenerationDuration,
		m.GeneratedTokens,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler returns the scrape handler for the registry the metrics live in.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// BuildOutcome records a finished build attempt.
func (m *Metrics) BuildOutcome(err error, duration time.Duration, documents, vocabulary int, generation uint64) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(outcome(err, "ok")).Inc()
	if err != nil {
		return
	}
	m.BuildDuration.Observe(duration.Seconds())
	m.DocumentsIndexed.Set(float64(documents))
	m.VocabularySize.Set(float64(vocabulary))
	m.SnapshotGeneration.Set(float64(generation))
}

// QueryOutcome records one retrieval. cacheStatus is "hit", "miss" or
// "disabled".
func (m *Metrics) QueryOutcome(err error, latency time.Duration, cacheStatus string, hits int) {
	if m == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotReady):
		m.QueriesTotal.WithLabelValues("not_ready").Inc()
		return
	case err != nil:
		m.QueriesTotal.WithLabelValues("error").Inc()
		return
	case hits == 0:
		m.QueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		m.QueriesTotal.WithLabelValues("hit").Inc()
	}
	m.QueryLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
}

// GenerationOutcome records one generation call.
func (m *Metrics) GenerationOutcome(err error, duration time.Duration, tokens int) {
	if m == nil {
		return
	}
	m.GeneratedTokens.Add(float64(tokens))
	label := outcome(err, "completed")
	if label == "error" {
		label = "failed"
	}
	m.GenerationsTotal.WithLabelValues(label).Inc()
	if err == nil {
		m.GenerationDuration.Observe(duration.Seconds())
	}
}

func outcome(err error, ok string) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrEmptyCorpus):
		return "empty"
	default:
		return "error"
	}
}
