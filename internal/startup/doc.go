// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: Path to the media library (default: /media)
//   - DATABASE_DIR: Path to the catalog database directory (default: /database)
//   - PORT: Control API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - INDEX_INTERVAL: Library re-scan interval as Go duration, 0 disables (default: 30m)
//   - WATCH_ENABLED: Record new files as they appear (default: true)
//   - REACTIVE_ENABLED: Fix dates as items are added or updated (default: true)
//   - BATCH_CONCURRENCY: Concurrent fixes in a batch run, 0 sizes from CPUs (default: 16)
//   - BATCH_PROGRESS_EVERY: Report progress every N fixes (default: 500)
//   - BATCH_KINDS: Item kinds a batch run looks at (default: movie,episode,audio)
//   - DRAIN_TIMEOUT: How long shutdown waits for in-flight fixes (default: 10s)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Some settings are read by the packages that use them:
//
//   - INDEX_WORKERS: Directory walker workers, see the workers package (default: 3)
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: Soft memory limit, see the memory package
//
// The database directory is created if needed and must be writable. The
// media directory is checked but a problem there is only a warning.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogCatalogInit]: Catalog initialization timing
//   - [LogFixerInit]: Date fixer configuration
//   - [LogIndexerInit]: Indexer interval and watcher
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
