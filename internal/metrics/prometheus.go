// Package metrics provides Prometheus metrics for the sign assessment service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Millisecond buckets for inference and store latency.
var defaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager owns every metric the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	predictions      *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	inferenceErrors  prometheus.Counter
	inferenceLatency prometheus.Histogram

	detectionsAppended prometheus.Counter
	verdicts           *prometheus.CounterVec
	progressUpdates    prometheus.Counter
	storeErrors        *prometheus.CounterVec
	storeLatency       *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter
	streamConnections   prometheus.Gauge
}

// global holds the active manager and the registry it writes to.
var global atomic.Pointer[state] //nolint:gochecknoglobals // singleton metrics manager

type state struct {
	manager  *Manager
	registry *prometheus.Registry
}

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it before handlers capture GetRegistry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))
	global.Store(&state{manager: NewManager(opts...), registry: registry})
}

func current() *Manager {
	return global.Load().manager
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "signcheck",
		subsystem:        "",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Total number of successful predictions by label",
	}, []string{"label"})

	m.validationErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_errors_total",
		Help:      "Total number of rejected prediction payloads by reason",
	}, []string{"reason"})

	m.inferenceErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_errors_total",
		Help:      "Total number of classifier failures on valid input",
	})

	m.inferenceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_latency_milliseconds",
		Help:      "Time spent normalizing and classifying one hand",
		Buckets:   m.histogramBuckets,
	})

	m.detectionsAppended = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_appended_total",
		Help:      "Total number of detections written to the log",
	})

	m.verdicts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assessment_verdicts_total",
		Help:      "Total number of assessment verdicts by state",
	}, []string{"state"})

	m.progressUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "progress_updates_total",
		Help:      "Total number of lesson completions recorded",
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of failed store operations",
	}, []string{"operation"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "Store operation latency",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the per-subject limiter",
	})

	m.streamConnections = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_connections",
		Help:      "Open assessment stream connections",
	})
}

// RecordPrediction counts a successful prediction.
func RecordPrediction(label string) {
	current().predictions.WithLabelValues(label).Inc()
}

// RecordValidationError counts a rejected payload.
func RecordValidationError(reason string) {
	current().validationErrors.WithLabelValues(reason).Inc()
}

// RecordInferenceError counts a classifier failure.
func RecordInferenceError() {
	current().inferenceErrors.Inc()
}

// RecordInferenceLatency records inference latency in milliseconds.
func RecordInferenceLatency(latencyMs float64) {
	current().inferenceLatency.Observe(latencyMs)
}

// RecordDetectionAppended counts a detection write.
func RecordDetectionAppended() {
	current().detectionsAppended.Inc()
}

// RecordVerdict counts an assessment verdict.
func RecordVerdict(state string) {
	current().verdicts.WithLabelValues(state).Inc()
}

// RecordProgressUpdate counts a recorded lesson completion.
func RecordProgressUpdate() {
	current().progressUpdates.Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	current().storeErrors.WithLabelValues(operation).Inc()
}

// RecordStoreLatency records store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	current().storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	current().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	current().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited() {
	current().rateLimited.Inc()
}

// StreamOpened increments the open stream gauge.
func StreamOpened() {
	current().streamConnections.Inc()
}

// StreamClosed decrements the open stream gauge.
func StreamClosed() {
	current().streamConnections.Dec()
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return global.Load().registry
}
