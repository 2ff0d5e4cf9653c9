package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/workers"
)

// Set with -ldflags "-X datecreated-fixer/internal/startup.Version=..."
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is served by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo reports the values baked in at build time.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// autoConcurrencyLimit caps BATCH_CONCURRENCY=0.
const autoConcurrencyLimit = 64

// Config is the server configuration.
type Config struct {
	MediaDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	IndexInterval   time.Duration
	WatchEnabled    bool
	ReactiveEnabled bool
	LogHealthChecks bool
	DrainTimeout    time.Duration

	// Batch fixer settings
	BatchConcurrency   int
	BatchProgressEvery int
	BatchKinds         []catalog.Kind

	// DatabasePath is the catalog file inside DatabaseDir.
	DatabasePath string
}

// TaskConfig returns the batch fixer configuration.
func (c *Config) TaskConfig() datefix.TaskConfig {
	return datefix.TaskConfig{
		Concurrency:   c.BatchConcurrency,
		ProgressEvery: c.BatchProgressEvery,
		Kinds:         c.BatchKinds,
	}
}

// LoadConfig reads the environment, logs the effective settings and makes
// sure the database directory is usable.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	mediaDir := getEnv("MEDIA_DIR", "/media")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	watchEnabled := getEnvBool("WATCH_ENABLED", true)
	reactiveEnabled := getEnvBool("REACTIVE_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	indexInterval := getEnvDuration("INDEX_INTERVAL", 30*time.Minute)
	drainTimeout := getEnvDuration("DRAIN_TIMEOUT", 10*time.Second)

	taskConfig, err := TaskConfigFromEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("  MEDIA_DIR:             %s", mediaDir)
	logging.Info("  DATABASE_DIR:          %s", databaseDir)
	logging.Info("  PORT:                  %s", port)
	logging.Info("  METRICS_PORT:          %s", metricsPort)
	logging.Info("  METRICS_ENABLED:       %v", metricsEnabled)
	logging.Info("  INDEX_INTERVAL:        %v", indexInterval)
	logging.Info("  WATCH_ENABLED:         %v", watchEnabled)
	logging.Info("  REACTIVE_ENABLED:      %v", reactiveEnabled)
	logging.Info("  BATCH_CONCURRENCY:     %d", taskConfig.Concurrency)
	logging.Info("  BATCH_PROGRESS_EVERY:  %d", taskConfig.ProgressEvery)
	logging.Info("  BATCH_KINDS:           %v", taskConfig.Kinds)
	logging.Info("  DRAIN_TIMEOUT:         %v", drainTimeout)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	if mediaDir, err = filepath.Abs(mediaDir); err != nil {
		return nil, fmt.Errorf("resolve media directory: %w", err)
	}
	if databaseDir, err = filepath.Abs(databaseDir); err != nil {
		return nil, fmt.Errorf("resolve database directory: %w", err)
	}
	logging.Info("  Media:    %s", mediaDir)
	logging.Info("  Database: %s", databaseDir)

	// A missing media directory only delays the first scan
	if err := ensureDirectory(mediaDir); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}
	if err := ensureDirectory(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		MediaDir:           mediaDir,
		DatabaseDir:        databaseDir,
		Port:               port,
		MetricsPort:        metricsPort,
		MetricsEnabled:     metricsEnabled,
		IndexInterval:      indexInterval,
		WatchEnabled:       watchEnabled,
		ReactiveEnabled:    reactiveEnabled,
		LogHealthChecks:    logHealthChecks,
		DrainTimeout:       drainTimeout,
		BatchConcurrency:   taskConfig.Concurrency,
		BatchProgressEvery: taskConfig.ProgressEvery,
		BatchKinds:         taskConfig.Kinds,
		DatabasePath:       filepath.Join(databaseDir, "catalog.db"),
	}

	logging.Info("")
	logging.Info("  Features:")
	logging.Info("    Catalog:          ENABLED (required)")
	logging.Info("    Reactive fixer:   %s", enabledString(config.ReactiveEnabled))
	logging.Info("    File watcher:     %s", enabledString(config.WatchEnabled))
	logging.Info("    Periodic index:   %s", enabledString(config.IndexInterval > 0))
	logging.Info("    Metrics:          %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// TaskConfigFromEnv reads the batch fixer settings. BATCH_CONCURRENCY=0
// sizes the pool from the available CPUs.
func TaskConfigFromEnv() (datefix.TaskConfig, error) {
	kinds, err := parseKinds(getEnv("BATCH_KINDS", "movie,episode,audio"))
	if err != nil {
		return datefix.TaskConfig{}, err
	}

	concurrency := getEnvInt("BATCH_CONCURRENCY", datefix.DefaultConcurrency)
	switch {
	case concurrency == 0:
		concurrency = workers.ForIO(autoConcurrencyLimit)
	case concurrency < 0:
		logging.Warn("Invalid BATCH_CONCURRENCY %d, using default: %d", concurrency, datefix.DefaultConcurrency)
		concurrency = datefix.DefaultConcurrency
	}

	progressEvery := getEnvInt("BATCH_PROGRESS_EVERY", datefix.DefaultProgressEvery)
	if progressEvery <= 0 {
		logging.Warn("Invalid BATCH_PROGRESS_EVERY %d, using default: %d", progressEvery, datefix.DefaultProgressEvery)
		progressEvery = datefix.DefaultProgressEvery
	}

	return datefix.TaskConfig{
		Concurrency:   concurrency,
		ProgressEvery: progressEvery,
		Kinds:         kinds,
	}, nil
}

// parseKinds parses a comma separated list of item kinds.
func parseKinds(value string) ([]catalog.Kind, error) {
	var kinds []catalog.Kind
	seen := make(map[catalog.Kind]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		kind, ok := catalog.ParseKind(part)
		if !ok {
			return nil, fmt.Errorf("invalid BATCH_KINDS entry %q", part)
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("BATCH_KINDS must name at least one kind")
	}
	return kinds, nil
}

// ensureDirectory creates path if needed and checks that it is a directory.
func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		logging.Debug("  Creating %s", path)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

// testWriteAccess creates and removes a probe file in dir.
func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}
