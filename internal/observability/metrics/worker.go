package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the retrieval indexing worker.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	indexed      *prometheus.CounterVec
	indexLatency *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	queueLag     prometheus.Histogram
	breakerState *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	constLabels := prometheus.Labels{"service": service}
	m := &WorkerMetrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "documents_indexed_total",
			Help:        "Documents taken off the upload queue, by document type and final index status.",
			ConstLabels: constLabels,
		}, []string{"doc_type", "status"}),
		indexLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_index_duration_seconds",
			Help:        "Time from dequeue to final index status.",
			Buckets:     []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "documents_in_flight",
			Help:        "Documents currently being indexed.",
			ConstLabels: constLabels,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "upload_queue_lag_seconds",
			Help:        "Delay between upload and the start of indexing.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "circuit_breaker_state",
			Help:        "Breaker state per operation: 0 closed, 1 half-open, 2 open.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
	}
	m.registry.MustRegister(m.indexed, m.indexLatency, m.inFlight, m.queueLag, m.breakerState)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IndexRun measures one document from dequeue to final status.
type IndexRun struct {
	m       *WorkerMetrics
	started time.Time
}

// BeginIndex starts a run. A zero uploadedAt skips the queue lag sample.
func (m *WorkerMetrics) BeginIndex(uploadedAt time.Time) *IndexRun {
	now := time.Now()
	m.inFlight.Inc()
	if !uploadedAt.IsZero() && now.After(uploadedAt) {
		m.queueLag.Observe(now.Sub(uploadedAt).Seconds())
	}
	return &IndexRun{m: m, started: now}
}

// Done records the outcome. An empty docType is reported as "unknown".
func (r *IndexRun) Done(docType string, err error) {
	r.m.inFlight.Dec()
	status := "ready"
	if err != nil {
		status = "failed"
	}
	if docType == "" {
		docType = "unknown"
	}
	r.m.indexed.WithLabelValues(docType, status).Inc()
	r.m.indexLatency.WithLabelValues(status).Observe(time.Since(r.started).Seconds())
}

func (m *WorkerMetrics) RecordBreakerState(operation string, state int) {
	m.breakerState.WithLabelValues(operation).Set(float64(state))
}
