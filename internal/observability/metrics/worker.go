package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	chunksTotal        *prometheus.CounterVec
	finalizeTotal      *prometheus.CounterVec
	finalizeDuration   *prometheus.HistogramVec
	sessionsInFlight   prometheus.Gauge
	budgetSpentRatio   *prometheus.HistogramVec
	segmentsPerSession *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	chunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Total streamed chunks by status.",
		},
		[]string{"service", "status"},
	)
	finalizeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "finalize_total",
			Help:      "Total session finalizations by status.",
		},
		[]string{"service", "status"},
	)
	finalizeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "finalize_duration_seconds",
			Help:      "Session lifetime from first chunk to ranked result.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	sessionsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "sessions_in_flight",
			Help:      "Number of open streaming sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	budgetSpentRatio := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "budget_spent_ratio",
			Help:      "Share of the embedding budget spent per finalized session.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1.0},
		},
		[]string{"service"},
	)
	segmentsPerSession := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "stream",
			Name:      "segments_per_session",
			Help:      "Distribution of segment counts per finalized session.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000, 50000},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		chunksTotal,
		finalizeTotal,
		finalizeDuration,
		sessionsInFlight,
		budgetSpentRatio,
		segmentsPerSession,
	)

	return &WorkerMetrics{
		registry:           registry,
		chunksTotal:        chunksTotal,
		finalizeTotal:      finalizeTotal,
		finalizeDuration:   finalizeDuration,
		sessionsInFlight:   sessionsInFlight,
		budgetSpentRatio:   budgetSpentRatio,
		segmentsPerSession: segmentsPerSession,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) SessionOpened() {
	m.sessionsInFlight.Inc()
}

func (m *WorkerMetrics) RecordChunk(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.chunksTotal.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) RecordFinalize(service string, segments, embedded, budget int, elapsed time.Duration, err error) {
	m.sessionsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.finalizeTotal.WithLabelValues(service, status).Inc()
	if err != nil {
		return
	}

	m.finalizeDuration.WithLabelValues(service).Observe(elapsed.Seconds())
	m.segmentsPerSession.WithLabelValues(service).Observe(float64(segments))
	if budget > 0 {
		m.budgetSpentRatio.WithLabelValues(service).Observe(float64(embedded) / float64(budget))
	}
}
