package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datecreated_fixer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog metrics
var (
	CatalogQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_catalog_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datecreated_fixer_catalog_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	CatalogTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datecreated_fixer_catalog_transaction_duration_seconds",
			Help:    "Catalog transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"}, // "commit" or "rollback"
	)

	CatalogEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_catalog_events_emitted_total",
			Help: "Total number of item change notifications delivered to subscribers",
		},
		[]string{"event"}, // "added" or "updated"
	)

	CatalogSubscriberPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_catalog_subscriber_panics_total",
			Help: "Total number of panics recovered from change subscribers",
		},
	)

	CatalogConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_catalog_connections_open",
			Help: "Number of open catalog database connections",
		},
	)

	CatalogItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_catalog_items",
			Help: "Number of catalog items by kind",
		},
		[]string{"kind"},
	)

	CatalogBadDateItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_catalog_bad_date_items",
			Help: "Number of catalog items whose creation date is on or before the bad-date threshold",
		},
	)
)

// Correction metrics shared by the reactive and batch paths
var (
	CorrectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_corrections_total",
			Help: "Total number of single-item correction outcomes",
		},
		[]string{"source", "outcome"}, // source: "reactive", "batch"; outcome: "fixed", "skipped", "failed"
	)

	CorrectionSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_correction_skips_total",
			Help: "Total number of skipped corrections by reason",
		},
		[]string{"source", "reason"},
	)
)

// Reactive corrector metrics
var (
	ReactiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_reactive_events_total",
			Help: "Total number of item change events received by the reactive corrector",
		},
		[]string{"event"},
	)

	ReactiveGuardRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_reactive_guard_rejections_total",
			Help: "Total number of events dropped because the item was already being corrected",
		},
	)

	ReactiveUpdatesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_reactive_updates_in_flight",
			Help: "Number of dispatched reactive catalog updates that have not completed",
		},
	)

	ReactiveRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_reactive_running",
			Help: "Whether the reactive corrector is subscribed (1 = subscribed, 0 = stopped)",
		},
	)
)

// Batch reconciler metrics
var (
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_batch_runs_total",
			Help: "Total number of batch reconciler runs by result",
		},
		[]string{"result"}, // "completed", "canceled", "failed"
	)

	BatchIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_batch_running",
			Help: "Whether a batch run is in progress (1 = running, 0 = idle)",
		},
	)

	BatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_batch_items_in_flight",
			Help: "Number of batch items currently being corrected",
		},
	)

	BatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datecreated_fixer_batch_run_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
	)

	BatchLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_batch_last_run_timestamp",
			Help: "Unix timestamp of the last batch run completion",
		},
	)

	BatchLastRunItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_batch_last_run_items",
			Help: "Item counts of the last batch run by outcome",
		},
		[]string{"outcome"}, // "fixed", "skipped", "errored", "unsubmitted"
	)
)

// Task manager metrics
var (
	TaskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_task_runs_total",
			Help: "Total number of scheduled task runs by result",
		},
		[]string{"task", "result"}, // "completed", "canceled", "failed"
	)

	TaskRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_task_running",
			Help: "Whether a task is currently running (1 = running, 0 = idle)",
		},
		[]string{"task"},
	)

	TaskProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_task_progress_percent",
			Help: "Last reported progress of a task in percent",
		},
		[]string{"task"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_indexer_runs_total",
			Help: "Total number of library scans",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_indexer_last_run_duration_seconds",
			Help: "Duration of the last library scan in seconds",
		},
	)

	IndexerItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_indexer_items_processed_total",
			Help: "Total number of paths upserted into the catalog by the indexer",
		},
		[]string{"kind"},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_indexer_parallel_workers",
			Help: "Number of workers used by the last parallel walk",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Filesystem probe metrics
var (
	FilesystemProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datecreated_fixer_filesystem_probe_duration_seconds",
			Help:    "Duration of file probes (stat including retries) in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume"},
	)

	FilesystemProbeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_filesystem_probe_results_total",
			Help: "Total number of file probes by result",
		},
		[]string{"volume", "result"}, // "found", "missing", "error"
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_filesystem_retry_attempts_total",
			Help: "Total number of retries after NFS stale file handle errors",
		},
		[]string{"volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_filesystem_retry_success_total",
			Help: "Total number of probes that succeeded after retrying",
		},
		[]string{"volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_filesystem_retry_failures_total",
			Help: "Total number of probes that failed after exhausting retries",
		},
		[]string{"volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_memory_paused",
			Help: "Whether batch submission is paused for memory pressure (1=paused, 0=running)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datecreated_fixer_memory_pauses_total",
			Help: "Total number of times memory pressure paused batch submission",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datecreated_fixer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
