package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/filesystem"
	"datecreated-fixer/internal/handlers"
	"datecreated-fixer/internal/indexer"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/memory"
	"datecreated-fixer/internal/metrics"
	"datecreated-fixer/internal/middleware"
	"datecreated-fixer/internal/startup"
	"datecreated-fixer/internal/tasks"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// catalogStatsAdapter publishes catalog statistics through the metrics collector.
type catalogStatsAdapter struct {
	cat interface {
		Stats(ctx context.Context, badBefore time.Time) (catalog.Stats, error)
		UpdateMetrics()
	}
}

// CollectStats implements metrics.StatsProvider
func (a *catalogStatsAdapter) CollectStats(ctx context.Context) (metrics.Stats, error) {
	a.cat.UpdateMetrics()

	stats, err := a.cat.Stats(ctx, datefix.Threshold)
	if err != nil {
		return metrics.Stats{}, err
	}

	byKind := make(map[string]int, len(stats.ItemsByKind))
	for kind, count := range stats.ItemsByKind {
		byKind[string(kind)] = count
	}
	return metrics.Stats{ItemsByKind: byKind, BadDates: stats.BadDates}, nil
}

// components holds everything the shutdown sequence stops.
type components struct {
	server        *http.Server
	metricsServer *http.Server
	fixer         *datefix.Service
	manager       *tasks.Manager
	collector     *metrics.Collector
	monitor       *memory.Monitor
	cat           *catalog.Catalog
	stopWatcher   context.CancelFunc
	drainTimeout  time.Duration
}

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before the catalog allocates anything
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	ctx := context.Background()

	// Initialize catalog
	catStart := time.Now()
	cat, err := catalog.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog: %v", err)
	}
	startup.LogCatalogInit(time.Since(catStart))

	// Initialize date fixer
	retryConfig := filesystem.DefaultRetryConfig()
	retryConfig.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"media": config.MediaDir})
	corrector := datefix.NewCorrector(cat, filesystem.NewProbe(retryConfig))

	var fixer *datefix.Service
	if config.ReactiveEnabled {
		fixer = datefix.NewService(cat, corrector)
		if err := fixer.Start(ctx); err != nil {
			startup.LogFatal("Failed to start reactive fixer: %v", err)
		}
	}
	taskConfig := config.TaskConfig()
	startup.LogFixerInit(config.ReactiveEnabled, taskConfig)

	// Register tasks. The fixer subscribes before the startup scan so newly
	// indexed items are corrected as they are added.
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	sweep := datefix.NewTask(cat, corrector, taskConfig)
	sweep.SetBackpressure(monitor)

	manager := tasks.NewManager()
	if err := manager.Register(sweep); err != nil {
		startup.LogFatal("Failed to register date fixer task: %v", err)
	}

	startup.LogIndexerInit(config.IndexInterval, config.WatchEnabled)
	idx := indexer.New(cat, config.MediaDir, config.IndexInterval)
	if err := manager.Register(idx); err != nil {
		startup.LogFatal("Failed to register indexer: %v", err)
	}
	startup.LogIndexerStarted()

	watchCtx, stopWatcher := context.WithCancel(ctx)
	if config.WatchEnabled {
		watcher := indexer.NewWatcher(cat, config.MediaDir)
		go func() {
			if err := watcher.Run(watchCtx); err != nil {
				logging.Error("File watcher stopped: %v", err)
			}
		}()
	}

	// Start metrics collection
	collector := metrics.NewCollector(&catalogStatsAdapter{cat: cat}, time.Minute)
	collector.Start()

	// Initialize handlers
	var fixerStatus handlers.Fixer
	if fixer != nil {
		fixerStatus = fixer
	}
	h := handlers.New(cat, manager, idx, fixerStatus)

	// Setup router
	router := setupRouter(h)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsServer *http.Server
	if config.MetricsEnabled {
		metricsServer = startMetricsServer(config.MetricsPort)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(components{
			server:        srv,
			metricsServer: metricsServer,
			fixer:         fixer,
			manager:       manager,
			collector:     collector,
			monitor:       monitor,
			cat:         cat,
			stopWatcher:   stopWatcher,
			drainTimeout:  config.DrainTimeout,
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Tasks
	api.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{key}", h.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{key}/run", h.RunTask).Methods("POST")
	api.HandleFunc("/tasks/{key}", h.CancelTask).Methods("DELETE")

	// Library
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(c components) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := c.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping file watcher")
	c.stopWatcher()
	startup.LogShutdownStepComplete("File watcher stopped")

	if c.fixer != nil {
		startup.LogShutdownStep("Draining reactive fixer")
		drainCtx, drainCancel := context.WithTimeout(ctx, c.drainTimeout)
		if err := c.fixer.Stop(drainCtx); err != nil {
			logging.Warn("Reactive fixer did not drain: %v", err)
		} else {
			startup.LogShutdownStepComplete("Reactive fixer stopped")
		}
		drainCancel()
	}

	startup.LogShutdownStep("Stopping tasks")
	if err := c.manager.Shutdown(ctx); err != nil {
		logging.Warn("Task shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Tasks stopped")
	}

	c.collector.Stop()
	c.monitor.Stop()

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Closing catalog")
	if err := c.cat.Close(); err != nil {
		logging.Warn("Catalog close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Catalog closed")
	}

	startup.LogShutdownComplete()
}
