// Package metrics provides Prometheus instrumentation for the date-created fixer.
//
// All metrics are prefixed with "datecreated_fixer_" and registered with the
// default registry through promauto, so they are exported by promhttp.Handler
// as soon as the package is imported.
//
// # Metric Categories
//
// ## Corrections
//
//   - CorrectionsTotal: outcomes of single-item corrections by source
//     ("reactive" or "batch") and outcome ("fixed", "skipped", "failed")
//   - CorrectionSkipsTotal: skipped corrections by reason
//
// ## Reactive Corrector
//
//   - ReactiveEventsTotal: item change events received
//   - ReactiveGuardRejections: events dropped because the item was already in flight
//   - ReactiveUpdatesInFlight: detached catalog updates not yet completed
//   - ReactiveRunning: subscription state
//
// ## Batch Reconciler
//
//   - BatchRunsTotal, BatchIsRunning, BatchInFlight
//   - BatchRunDuration, BatchLastRunTimestamp, BatchLastRunItems
//
// ## Catalog and Indexer
//
//   - CatalogQueryTotal / CatalogQueryDuration per operation
//   - CatalogItemsTotal and CatalogBadDateItems, refreshed by Collector
//   - Indexer* and Watcher* for library scans and filesystem events
//
// ## Filesystem
//
// Recorded through filesystem.Observer (see NewFilesystemObserver) to keep the
// filesystem package free of a dependency on this one.
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
