package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docquery"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	documentsUploaded   *prometheus.CounterVec
	documentsClassified *prometheus.CounterVec
	answersTotal        *prometheus.CounterVec
	answerDuration      *prometheus.HistogramVec
	modelAttemptsTotal  *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsUploaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "uploaded_total",
			Help:      "Uploaded documents by outcome.",
		},
		[]string{"service", "status"},
	)
	documentsClassified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "classified_total",
			Help:      "Classification decisions by type and source.",
		},
		[]string{"service", "type", "source"},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answers",
			Name:      "total",
			Help:      "Answered questions by route and fallback usage.",
		},
		[]string{"service", "kind", "fallback"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "answers",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "kind"},
	)
	modelAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "model_attempts_total",
			Help:      "Generation attempts per model by outcome.",
		},
		[]string{"service", "model", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentsUploaded,
		documentsClassified,
		answersTotal,
		answerDuration,
		modelAttemptsTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		documentsUploaded:   documentsUploaded,
		documentsClassified: documentsClassified,
		answersTotal:        answersTotal,
		answerDuration:      answerDuration,
		modelAttemptsTotal:  modelAttemptsTotal,
		breakerState:        breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by normalized route. /metrics scrapes are not
// counted.
func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()
		next.ServeHTTP(rec, r)

		route := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(service, r.Method, route, strconv.Itoa(rec.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// normalizePath replaces session and document IDs so label cardinality stays bounded.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/sessions/") {
		return path
	}
	parts := strings.Split(strings.TrimPrefix(path, "/v1/sessions/"), "/")
	parts[0] = "{session_id}"
	if len(parts) >= 3 && parts[1] == "documents" {
		parts[2] = "{document_id}"
	}
	return "/v1/sessions/" + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) RecordUpload(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.documentsUploaded.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordClassification(service, docType, source string) {
	if docType == "" {
		docType = "unknown"
	}
	m.documentsClassified.WithLabelValues(service, docType, source).Inc()
}

func (m *HTTPServerMetrics) RecordAnswer(service, kind string, fallback bool, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	m.answersTotal.WithLabelValues(service, kind, strconv.FormatBool(fallback)).Inc()
	m.answerDuration.WithLabelValues(service, kind).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordModelAttempt(service, model string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.modelAttemptsTotal.WithLabelValues(service, model, status).Inc()
}

// RecordBreakerState stores gobreaker's numeric state (closed 0, half-open 1, open 2).
func (m *HTTPServerMetrics) RecordBreakerState(service, operation string, state int) {
	m.breakerState.WithLabelValues(service, operation).Set(float64(state))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
