// Package metrics provides Prometheus metrics for the position grading service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buckets for values living in [0,1].
var unitBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1} //nolint:gochecknoglobals // static bucket layout

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Grading
	gradings        *prometheus.CounterVec
	finalScore      prometheus.Histogram
	subScores       *prometheus.HistogramVec
	gradingLatency  prometheus.Histogram
	cacheHits       prometheus.Counter
	coalescedGrades prometheus.Counter

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workersBusy        prometheus.Gauge

	// Leaderboard and archive
	participants      prometheus.Gauge
	leaderboardUpdate prometheus.Counter
	archiveErrors     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var (
	globalManager  *Manager                    //nolint:gochecknoglobals // singleton used by package helpers
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates and registers a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "posgrade",
		subsystem:        "grader",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.gradings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "gradings_total",
		Help:        "Grading invocations by outcome (ok, missing_predictions_file, missing_required_columns, processing_error)",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.finalScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "final_score",
		Help:        "Distribution of final grading scores",
		Buckets:     unitBuckets,
		ConstLabels: m.constLabels,
	})

	m.subScores = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "subscore",
		Help:        "Distribution of sub-scores by name",
		Buckets:     unitBuckets,
		ConstLabels: m.constLabels,
	}, []string{"name"})

	m.gradingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "grading_latency_milliseconds",
		Help:        "Wall time of one grading invocation in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_hits_total",
		Help:        "Gradings answered from the result cache",
		ConstLabels: m.constLabels,
	})

	m.coalescedGrades = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "coalesced_total",
		Help:        "Gradings that shared an in-flight identical grading",
		ConstLabels: m.constLabels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Jobs waiting in the grading queue",
		ConstLabels: m.constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_capacity",
		Help:        "Maximum number of queued jobs",
		ConstLabels: m.constLabels,
	})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_enqueue_errors_total",
		Help:        "Rejected enqueues by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Configured grading workers",
		ConstLabels: m.constLabels,
	})

	m.workersBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "workers_busy",
		Help:        "Workers currently grading a job",
		ConstLabels: m.constLabels,
	})

	m.participants = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "leaderboard_participants",
		Help:        "Participants ranked on the leaderboard",
		ConstLabels: m.constLabels,
	})

	m.leaderboardUpdate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "leaderboard_updates_total",
		Help:        "Runs that improved a participant's best score",
		ConstLabels: m.constLabels,
	})

	m.archiveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "archive_errors_total",
		Help:        "Failed archive reads or writes",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "type"})
}

// RecordGrading records the outcome and, for scored outcomes, the score distribution.
func (m *Manager) RecordGrading(outcome string, score float64, subscores map[string]float64, latencyMs float64) {
	m.gradings.WithLabelValues(outcome).Inc()
	m.finalScore.Observe(score)
	for name, v := range subscores {
		m.subScores.WithLabelValues(name).Observe(v)
	}
	m.gradingLatency.Observe(latencyMs)
}

// RecordGrading records a grading on the global manager.
func RecordGrading(outcome string, score float64, subscores map[string]float64, latencyMs float64) {
	globalManager.RecordGrading(outcome, score, subscores, latencyMs)
}

// RecordCacheHit counts a result served from the cache.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCoalesced counts a grading that joined an in-flight call.
func RecordCoalesced() { globalManager.coalescedGrades.Inc() }

// UpdateQueueSize sets the queue backlog.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// WorkerBusy marks one worker busy; the returned func marks it idle again.
func WorkerBusy() func() {
	globalManager.workersBusy.Inc()
	return globalManager.workersBusy.Dec
}

// UpdateParticipants sets the number of ranked participants.
func UpdateParticipants(count int) { globalManager.participants.Set(float64(count)) }

// RecordLeaderboardUpdate counts an improved best score.
func RecordLeaderboardUpdate() { globalManager.leaderboardUpdate.Inc() }

// RecordArchiveError counts an archive failure.
func RecordArchiveError() {
	globalManager.archiveErrors.Inc()
	RecordErrorByComponent("archive", "io")
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the package helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
