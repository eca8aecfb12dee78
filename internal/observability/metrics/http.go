package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionTotal    *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionSegments *prometheus.HistogramVec
	embeddedSegments   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salience",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "salience",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salience",
			Subsystem: "extract",
			Name:      "extractions_total",
			Help:      "Total one-shot extractions by status.",
		},
		[]string{"service", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "One-shot extraction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	extractionSegments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "extract",
			Name:      "segments",
			Help:      "Distribution of segment counts per extraction.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000, 50000},
		},
		[]string{"service"},
	)
	embeddedSegments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "salience",
			Subsystem: "extract",
			Name:      "embedded_segments",
			Help:      "Distribution of embedded segment counts per extraction.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2000, 4000},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionTotal,
		extractionDuration,
		extractionSegments,
		embeddedSegments,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		extractionSegments: extractionSegments,
		embeddedSegments:   embeddedSegments,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath bounds label cardinality: only known routes keep their path.
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics", "/v1/extract", "/v1/retrieve", "/v1/chunks":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service string, segments, embedded int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.extractionTotal.WithLabelValues(service, status).Inc()
	if err != nil {
		return
	}
	m.extractionDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.extractionSegments.WithLabelValues(service).Observe(float64(segments))
	m.embeddedSegments.WithLabelValues(service).Observe(float64(embedded))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
