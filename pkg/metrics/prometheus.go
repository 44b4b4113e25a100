package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gigmatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Core Business Metrics - matching runs and their output
	matchRuns        *prometheus.CounterVec
	matchRunLatency  prometheus.Histogram
	eventsScored     prometheus.Counter
	eventsSkipped    *prometheus.CounterVec
	matchResults     *prometheus.CounterVec

	// Profile Metrics - normalization and sync pipeline
	profileSyncs          *prometheus.CounterVec
	profileSyncDuplicates prometheus.Counter
	profileSyncLatency    prometheus.Histogram
	enrichedArtists       *prometheus.CounterVec

	// Queue Metrics - sync job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - sync job processing
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Provider Metrics - outbound streaming-service calls
	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	circuitBreakerState     *prometheus.GaugeVec
	circuitBreakerChanges   *prometheus.CounterVec

	// Store Metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gigmatch",
		subsystem:        "matcher",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.matchRuns = auto.NewCounterVec(
		m.counterOpts("match_runs_total", "Total number of batch match runs by outcome"),
		[]string{"outcome"},
	)
	m.matchRunLatency = auto.NewHistogram(
		m.histogramOpts("match_run_duration_milliseconds", "Duration of a batch match run in milliseconds"),
	)
	m.eventsScored = auto.NewCounter(
		m.counterOpts("events_scored_total", "Total number of events scored against a profile"),
	)
	m.eventsSkipped = auto.NewCounterVec(
		m.counterOpts("events_skipped_total", "Total number of events skipped during matching by reason"),
		[]string{"reason"},
	)
	m.matchResults = auto.NewCounterVec(
		m.counterOpts("match_results_total", "Total number of match results by tag"),
		[]string{"tag"},
	)

	m.profileSyncs = auto.NewCounterVec(
		m.counterOpts("profile_syncs_total", "Total number of profile syncs by source and outcome"),
		[]string{"source", "outcome"},
	)
	m.profileSyncDuplicates = auto.NewCounter(
		m.counterOpts("profile_sync_duplicates_total", "Total number of sync requests dropped while one was in flight"),
	)
	m.profileSyncLatency = auto.NewHistogram(
		m.histogramOpts("profile_sync_duration_milliseconds", "Duration of a profile sync in milliseconds"),
	)
	m.enrichedArtists = auto.NewCounterVec(
		m.counterOpts("enriched_artists_total", "Total number of artist enrichment attempts by outcome"),
		[]string{"outcome"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the sync job queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the sync job queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Sync job queue utilization ratio (0-1)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Total number of jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue failures"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of sync workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers currently processing a job"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time a worker spends on one job in milliseconds"),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of failed jobs"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.providerRequests = auto.NewCounterVec(
		m.counterOpts("provider_requests_total", "Total number of outbound provider requests"),
		[]string{"provider", "endpoint", "status_code"},
	)
	m.providerRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("provider_request_duration_milliseconds", "Outbound provider request duration in milliseconds"),
		[]string{"provider", "endpoint"},
	)
	m.circuitBreakerState = auto.NewGaugeVec(
		m.gaugeOpts("circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)"),
		[]string{"name"},
	)
	m.circuitBreakerChanges = auto.NewCounterVec(
		m.counterOpts("circuit_breaker_transitions_total", "Total number of circuit breaker state transitions"),
		[]string{"name", "from", "to"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_duration_milliseconds", "Store operation latency in milliseconds"),
		[]string{"operation"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Total number of failed store operations"),
		[]string{"operation"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Current heap allocation in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Current number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "Most recent GC pause in milliseconds"),
	)
}

// Business Metrics Functions.

// RecordMatchRun records the outcome of one batch match run ("ok", "profile_missing", "error").
func RecordMatchRun(outcome string, latencyMs float64) {
	globalManager.matchRuns.WithLabelValues(outcome).Inc()
	globalManager.matchRunLatency.Observe(latencyMs)
}

// RecordEventsScored adds n scored events.
func RecordEventsScored(n int) {
	globalManager.eventsScored.Add(float64(n))
}

// RecordEventSkipped records an event left out of a run.
func RecordEventSkipped(reason string) {
	globalManager.eventsSkipped.WithLabelValues(reason).Inc()
}

// RecordMatchResult records a produced result under its tag.
func RecordMatchResult(tag string) {
	globalManager.matchResults.WithLabelValues(tag).Inc()
}

// Profile Metrics Functions.

// RecordProfileSync records a finished profile sync.
func RecordProfileSync(source, outcome string, latencyMs float64) {
	globalManager.profileSyncs.WithLabelValues(source, outcome).Inc()
	globalManager.profileSyncLatency.Observe(latencyMs)
}

// RecordProfileSyncDuplicate increments the in-flight duplicate counter.
func RecordProfileSyncDuplicate() {
	globalManager.profileSyncDuplicates.Inc()
}

// RecordArtistEnrichment records one artist enrichment attempt.
func RecordArtistEnrichment(outcome string) {
	globalManager.enrichedArtists.WithLabelValues(outcome).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Provider Metrics Functions.

// RecordProviderRequest records one outbound provider call. statusCode is "error" on transport failure.
func RecordProviderRequest(provider, endpoint, statusCode string, latencyMs float64) {
	globalManager.providerRequests.WithLabelValues(provider, endpoint, statusCode).Inc()
	globalManager.providerRequestDuration.WithLabelValues(provider, endpoint).Observe(latencyMs)
}

// UpdateCircuitBreakerState sets the numeric breaker state for name.
func UpdateCircuitBreakerState(name string, state int) {
	globalManager.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTransition counts a state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	globalManager.circuitBreakerChanges.WithLabelValues(name, from, to).Inc()
}

// Store Metrics Functions.

// RecordStoreOperation records the latency of a store call and counts it as failed when err is non-nil.
func RecordStoreOperation(operation string, latencyMs float64, err error) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
