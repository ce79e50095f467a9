// Package metrics provides Prometheus metrics for the ladder crawler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector the crawler reports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Remote calls
	remoteCalls    *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec

	// Discovery
	ladderEntries      prometheus.Counter
	accountsResolved   prometheus.Counter
	accountsUnresolved prometheus.Counter
	matchIDsSeen       prometheus.Counter
	matchIDsNew        prometheus.Counter
	matchesFetched     prometheus.Counter
	matchesDropped     prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Persisted state
	indexSize         prometheus.Gauge
	indexDensity      prometheus.Gauge
	rosterSize        prometheus.Gauge
	partitionsWritten prometheus.Counter
	persistErrors     *prometheus.CounterVec

	// Cycle
	cycleDuration prometheus.Histogram
	cyclesTotal   *prometheus.CounterVec

	// Ops listener
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rankcrawl",
		subsystem:        "cycle",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}

	m.remoteCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("remote_calls_total"),
		Help: "Remote API calls issued, by call kind", ConstLabels: constLabels,
	}, []string{"call"})
	m.remoteFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("remote_failures_total"),
		Help: "Remote API calls that failed and were treated as empty", ConstLabels: constLabels,
	}, []string{"call"})
	m.remoteLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("remote_latency_seconds"),
		Help: "Remote API call latency", Buckets: m.histogramBuckets, ConstLabels: constLabels,
	}, []string{"call"})

	m.ladderEntries = counter("ladder_entries_total", "Ranked ladder entries paginated")
	m.accountsResolved = counter("accounts_resolved_total", "Player records that received an account id")
	m.accountsUnresolved = counter("accounts_unresolved_total", "Player records deferred without an account id")
	m.matchIDsSeen = counter("match_ids_seen_total", "Match ids returned by match-history calls")
	m.matchIDsNew = counter("match_ids_new_total", "Match ids not present in the membership index")
	m.matchesFetched = counter("matches_fetched_total", "Match details fetched and streamed")
	m.matchesDropped = counter("matches_dropped_total", "Match detail fetches that failed or were not found")

	m.queueSize = gauge("queue_size", "Match details waiting for a consumer")
	m.queueCapacity = gauge("queue_capacity", "Match detail queue capacity")
	m.queueEnqueued = counter("queue_enqueued_total", "Match details enqueued")
	m.queueDequeued = counter("queue_dequeued_total", "Match details dequeued")
	m.queueEnqueueErrs = counter("queue_enqueue_errors_total", "Match details rejected by the queue")

	m.workerCount = gauge("worker_count", "Match consumers running")
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("worker_processing_latency_seconds"),
		Help: "Time to turn one match detail into a match record", Buckets: m.histogramBuckets, ConstLabels: constLabels,
	})
	m.workerErrors = counter("worker_errors_total", "Match details a consumer could not convert")

	m.indexSize = gauge("index_size", "Match ids held by the membership index")
	m.indexDensity = gauge("index_density", "Average set bits per allocated index segment")
	m.rosterSize = gauge("roster_size", "Player records written to the roster snapshot")
	m.partitionsWritten = counter("partitions_written_total", "Match partition files appended or created")
	m.persistErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("persist_errors_total"),
		Help: "Persistence failures by output", ConstLabels: constLabels,
	}, []string{"output"})

	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("duration_seconds"),
		Help: "Wall time of a full crawl cycle", ConstLabels: constLabels,
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
	})
	m.cyclesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("runs_total"),
		Help: "Crawl cycles by outcome", ConstLabels: constLabels,
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", Name: m.name("requests_total"),
		Help: "Requests served by the ops listener", ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", Name: m.name("request_duration_seconds"),
		Help: "Ops listener request latency", Buckets: m.histogramBuckets, ConstLabels: constLabels,
	}, []string{"endpoint", "method"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("errors_by_component_total"),
		Help: "Errors by component and type", ConstLabels: constLabels,
	}, []string{"component", "error_type"})
}

// RecordRemoteCall records one remote call, its latency and whether it failed.
func RecordRemoteCall(call string, latency time.Duration, failed bool) {
	globalManager.remoteCalls.WithLabelValues(call).Inc()
	globalManager.remoteLatency.WithLabelValues(call).Observe(latency.Seconds())
	if failed {
		globalManager.remoteFailures.WithLabelValues(call).Inc()
	}
}

// RecordLadderEntries adds n paginated ladder entries.
func RecordLadderEntries(n int) {
	globalManager.ladderEntries.Add(float64(n))
}

// RecordAccountResolution records the outcome of one account id lookup.
func RecordAccountResolution(resolved bool) {
	if resolved {
		globalManager.accountsResolved.Inc()
		return
	}
	globalManager.accountsUnresolved.Inc()
}

// RecordMatchIDs records ids returned by a match history call and how many were new.
func RecordMatchIDs(seen, fresh int) {
	globalManager.matchIDsSeen.Add(float64(seen))
	globalManager.matchIDsNew.Add(float64(fresh))
}

// RecordMatchFetched increments the fetched match counter.
func RecordMatchFetched() {
	globalManager.matchesFetched.Inc()
}

// RecordMatchDropped increments the dropped match counter.
func RecordMatchDropped() {
	globalManager.matchesDropped.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
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
	globalManager.queueEnqueueErrs.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latency time.Duration) {
	globalManager.workerProcessingLatency.Observe(latency.Seconds())
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateIndex sets the membership index size and density gauges.
func UpdateIndex(size int, density float64) {
	globalManager.indexSize.Set(float64(size))
	globalManager.indexDensity.Set(density)
}

// UpdateRosterSize sets the roster size gauge.
func UpdateRosterSize(n int) {
	globalManager.rosterSize.Set(float64(n))
}

// RecordPartitionWritten increments the partition counter.
func RecordPartitionWritten() {
	globalManager.partitionsWritten.Inc()
}

// RecordPersistError counts a failed persistence output.
func RecordPersistError(output string) {
	globalManager.persistErrors.WithLabelValues(output).Inc()
}

// RecordCycle records the duration and outcome of a crawl cycle.
func RecordCycle(d time.Duration, outcome string) {
	globalManager.cycleDuration.Observe(d.Seconds())
	globalManager.cyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one request served by the ops listener.
func RecordHTTPRequest(endpoint, method, status string, d time.Duration) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpDuration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler exposes the custom registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
