// Package metrics provides Prometheus metrics for the duelboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	reportsIngested  *prometheus.CounterVec
	reportsDuplicate prometheus.Counter
	reportsRejected  prometheus.Counter
	reportsStored    prometheus.Gauge

	// Aggregation
	battlesExtracted   prometheus.Counter
	battlesDiscarded   prometheus.Counter
	entriesDropped     prometheus.Counter
	aggregationLatency prometheus.Histogram
	aggregationCache   *prometheus.CounterVec
	participants       *prometheus.GaugeVec

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter

	// Upstream
	upstreamFetches      *prometheus.CounterVec
	upstreamFetchLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duelboard",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.reportsIngested = m.counterVec("reports_ingested_total", "Batch reports accepted for storage by source", "source")
	m.reportsDuplicate = m.counter("reports_duplicate_total", "Batch reports ignored because their fingerprint was already seen")
	m.reportsRejected = m.counter("reports_rejected_total", "Batch reports rejected by queue backpressure")
	m.reportsStored = m.gauge("reports_stored", "Batch reports currently held in the snapshot store")

	m.battlesExtracted = m.counter("battles_extracted_total", "Battles extracted from batch reports during aggregation")
	m.battlesDiscarded = m.counter("battles_discarded_total", "Battles dropped because an entry was malformed")
	m.entriesDropped = m.counter("entries_dropped_total", "Batch entries with a missing id or unusable rating change")
	m.aggregationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "aggregation_latency_milliseconds",
		Help:    "Time to extract and aggregate one snapshot",
		Buckets: m.histogramBuckets,
	})
	m.aggregationCache = m.counterVec("aggregation_cache_total", "Aggregation cache lookups by result", "result")
	m.participants = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "participants",
		Help: "Participants in the latest aggregation per validator",
	}, []string{"validator"})

	m.queueSize = m.gauge("queue_size", "Batch reports waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingestion queue")
	m.workerCount = m.gauge("worker_count", "Ingestion workers running")
	m.workerErrors = m.counter("worker_errors_total", "Errors while storing batch reports")

	m.upstreamFetches = m.counterVec("upstream_fetches_total", "Requests to the upstream report API", "endpoint", "outcome")
	m.upstreamFetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "upstream_fetch_latency_milliseconds",
		Help:    "Upstream report API latency",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint"})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByType = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordReportIngested counts a batch accepted from source ("api" or "upstream").
func RecordReportIngested(source string) {
	globalManager.reportsIngested.WithLabelValues(source).Inc()
}

// RecordReportDuplicate counts a batch skipped as a duplicate.
func RecordReportDuplicate() {
	globalManager.reportsDuplicate.Inc()
}

// RecordReportRejected counts a batch refused by backpressure.
func RecordReportRejected() {
	globalManager.reportsRejected.Inc()
}

// UpdateReportsStored sets the number of stored batches.
func UpdateReportsStored(n int) {
	globalManager.reportsStored.Set(float64(n))
}

// RecordExtraction records the outcome of one battle extraction pass.
func RecordExtraction(battles, discarded, droppedEntries int) {
	globalManager.battlesExtracted.Add(float64(battles))
	globalManager.battlesDiscarded.Add(float64(discarded))
	globalManager.entriesDropped.Add(float64(droppedEntries))
}

// RecordAggregationLatency records aggregation latency in milliseconds.
func RecordAggregationLatency(ms float64) {
	globalManager.aggregationLatency.Observe(ms)
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.aggregationCache.WithLabelValues(result).Inc()
}

// UpdateParticipants sets the participant count of a validator's latest aggregation.
func UpdateParticipants(validator string, n int) {
	if validator == "" {
		validator = "all"
	}
	globalManager.participants.WithLabelValues(validator).Set(float64(n))
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// RecordWorkerError counts a failed store write.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordUpstreamFetch records one upstream request.
func RecordUpstreamFetch(endpoint, outcome string, ms float64) {
	globalManager.upstreamFetches.WithLabelValues(endpoint, outcome).Inc()
	globalManager.upstreamFetchLatency.WithLabelValues(endpoint).Observe(ms)
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordError counts an error by component and type.
func RecordError(component, errorType string) {
	globalManager.errorsByType.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// GetRegistry returns the registry that holds the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
