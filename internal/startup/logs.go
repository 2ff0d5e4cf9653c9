package startup

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/logging"
)

const rule = "------------------------------------------------------------"

// section starts a titled block of startup output.
func section(title string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	fmt.Println(rule + `
    ____        __        ______                __           __
   / __ \____ _/ /____   / ____/_______  ____ _/ /____  ____/ /
  / / / / __ '/ __/ _ \ / /   / ___/ _ \/ __ '/ __/ _ \/ __  /
 / /_/ / /_/ / /_/  __// /___/ /  /  __/ /_/ / /_/  __/ /_/ /
/_____/\__,_/\__/\___/ \____/_/   \___/\__,_/\__/\___/\__,_/
` + rule)
	logging.Info("  Version: %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started: %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	logging.Info("  Go:         %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:       %d (GOMAXPROCS %d)", cpus, procs)
	if procs < cpus {
		logging.Info("  Container CPU limit detected")
	}
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:   %s", hostname)
	}
}

// LogCatalogInit logs catalog initialization
func LogCatalogInit(duration time.Duration) {
	section("CATALOG INITIALIZATION")
	logging.Info("  [OK] Catalog opened in %v", duration)
}

// LogFixerInit logs date fixer initialization
func LogFixerInit(reactive bool, cfg datefix.TaskConfig) {
	section("DATE FIXER INITIALIZATION")
	logging.Info("  Bad timestamp threshold: %s", datefix.Threshold.Format(time.RFC3339))
	if reactive {
		logging.Info("  [OK] Reactive corrector subscribed to catalog events")
	} else {
		logging.Warn("  Reactive corrector disabled, only batch runs will fix dates")
	}
	logging.Info("  Batch: %d concurrent, progress every %d fixes, kinds %v", cfg.Concurrency, cfg.ProgressEvery, cfg.Kinds)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval time.Duration, watch bool) {
	section("INDEXER INITIALIZATION")
	if interval > 0 {
		logging.Info("  Scan: at startup, then every %v", interval)
	} else {
		logging.Info("  Scan: at startup only")
	}
	logging.Info("  File watcher: %s", enabledString(watch))
}

// LogIndexerStarted logs that the indexer task is registered.
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer registered")
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED in %v", config.StartupDuration)
	logging.Info("  Control API: http://0.0.0.0:%s/api/tasks", config.Port)
	logging.Info("  Health:      http://0.0.0.0:%s/health", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:     http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:     DISABLED")
	}
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
