// Package main provides the entry point for the DateCreated fixer service.
//
// The service keeps a media catalog's creation dates sane. Importers that
// cannot determine when a file was created store a sentinel at or before
// 2000-01-01, which breaks "recently added" views. The service replaces
// such dates with the backing file's modification time, both as items
// arrive and in full-library sweeps.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT if present
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Catalog Initialization: Opens the SQLite catalog
//  4. Component Initialization:
//     - Reactive Fixer: Corrects items as the catalog reports them added or updated
//     - Memory Monitor: Pauses sweep submission under memory pressure
//     - Task Manager: Runs the sweep and the library scan on demand or on schedule
//     - File Watcher: Adds new files to the catalog as they appear
//     - Metrics Collector: Publishes catalog statistics every minute
//  5. HTTP Server Setup: Configures routes and middleware and starts serving
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM and stops all components
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - /health and /livez probes, /version
//     - /api/tasks to list, run and cancel tasks
//     - /api/reindex, /api/items/{id} and /api/stats
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
//   - MEDIA_DIR: Root directory containing media files (default: /media)
//   - DATABASE_DIR: Directory for the catalog database (default: /database)
//   - PORT: Main HTTP server port (default: 8080)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - INDEX_INTERVAL: Library scan interval, 0 to disable (default: 30m)
//   - WATCH_ENABLED: Watch the media directory for new files (default: true)
//   - REACTIVE_ENABLED: Fix items as they are added (default: true)
//   - BATCH_CONCURRENCY: Items corrected at once by a sweep, 0 for auto (default: 16)
//   - BATCH_PROGRESS_EVERY: Fixes between progress reports (default: 500)
//   - BATCH_KINDS: Item kinds a sweep covers (default: movie,episode,audio)
//   - DRAIN_TIMEOUT: How long shutdown waits for reactive saves (default: 10s)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - LOG_HEALTH_CHECKS: Log /health and /livez requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: See package memory
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Stop the file watcher
//  3. Drain the reactive fixer, abandoning saves after DRAIN_TIMEOUT
//  4. Cancel running tasks and wait for them to return
//  5. Stop the metrics collector and memory monitor
//  6. Shutdown metrics server (if running)
//  7. Close the catalog
//
// # Related Packages
//
//   - [datecreated-fixer/internal/catalog]: SQLite catalog and change events
//   - [datecreated-fixer/internal/datefix]: Correction logic, reactive service and sweep task
//   - [datecreated-fixer/internal/tasks]: Task manager and scheduling
//   - [datecreated-fixer/internal/indexer]: Media directory scanning and watching
//   - [datecreated-fixer/internal/handlers]: HTTP request handlers
//   - [datecreated-fixer/internal/middleware]: HTTP logging and metrics middleware
//   - [datecreated-fixer/internal/startup]: Configuration and initialization
//
// The fixdates command runs the same sweep from the command line.
package main
