package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/filesystem"
	"datecreated-fixer/internal/indexer"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/memory"
	"datecreated-fixer/internal/startup"

	"golang.org/x/term"
)

const (
	// Default timeout for status queries
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	// Default media directory path
	defaultMediaDir = "/media"

	exitError    = 1
	exitCanceled = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(exitError)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing in-flight items...")
		cancel()
	}()

	// Per-item logs would bury the progress line; LOG_LEVEL restores them
	if os.Getenv("LOG_LEVEL") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	databaseDir := getEnv("DATABASE_DIR", defaultDatabaseDir)
	mediaDir := getEnv("MEDIA_DIR", defaultMediaDir)

	cat, err := catalog.New(ctx, filepath.Join(databaseDir, "catalog.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(exitError)
	}

	code := 0
	switch command {
	case "run":
		cfg, cfgErr := startup.TaskConfigFromEnv()
		if cfgErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", cfgErr)
			code = exitError
			break
		}
		memory.ConfigureFromEnv()
		monitor := memory.NewMonitor(memory.DefaultConfig())
		monitor.Start()
		_, err = runFix(ctx, cat, newProbe(mediaDir), cfg, monitor, newProgressPrinter(os.Stdout), os.Stdout)
		monitor.Stop()
		code = exitCode(err)
	case "index":
		err = runIndex(ctx, cat, mediaDir, newProgressPrinter(os.Stdout), os.Stdout)
		code = exitCode(err)
	case "status":
		if err = showStatus(ctx, cat, os.Stdout); err != nil {
			code = exitError
		}
	default:
		// Sanitize command input using allowlist to break taint chain
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stdout)
		code = exitError
	}

	if err != nil && code != exitCanceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if closeErr := cat.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", closeErr)
	}
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case datefix.IsCanceled(err):
		return exitCanceled
	default:
		return exitError
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "DateCreated Fixer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: fixdates <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run     - Fix every item with a bad DateCreated")
	fmt.Fprintln(w, "  index   - Scan the media directory into the catalog")
	fmt.Fprintln(w, "  status  - Show how many items have a bad DateCreated")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DATABASE_DIR         - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Fprintf(w, "  MEDIA_DIR            - Path to media directory (default: %s)\n", defaultMediaDir)
	fmt.Fprintf(w, "  BATCH_CONCURRENCY    - Items corrected at once, 0 for auto (default: %d)\n", datefix.DefaultConcurrency)
	fmt.Fprintf(w, "  BATCH_PROGRESS_EVERY - Fixes between progress updates (default: %d)\n", datefix.DefaultProgressEvery)
	fmt.Fprintln(w, "  BATCH_KINDS          - Comma-separated kinds to sweep (default: movie,episode,audio)")
}

func newProbe(mediaDir string) *filesystem.Probe {
	retryConfig := filesystem.DefaultRetryConfig()
	retryConfig.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"media": mediaDir})
	return filesystem.NewProbe(retryConfig)
}

// runFix sweeps the catalog once and prints the summary. A canceled sweep
// still prints the partial summary and returns the context error.
func runFix(ctx context.Context, cat *catalog.Catalog, probe datefix.FileProber, cfg datefix.TaskConfig, pressure datefix.Backpressure, progress *progressPrinter, out io.Writer) (datefix.Summary, error) {
	task := datefix.NewTask(cat, datefix.NewCorrector(cat, probe), cfg)
	if pressure != nil {
		task.SetBackpressure(pressure)
	}
	summary, err := task.Run(ctx, progress)
	progress.Done()

	if err != nil && !summary.Canceled {
		return summary, err
	}
	printSummary(out, summary)
	return summary, err
}

func printSummary(w io.Writer, s datefix.Summary) {
	status := "completed"
	if s.Canceled {
		status = "canceled"
	}
	fmt.Fprintf(w, "Sweep %s in %s\n", status, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Scanned:     %d\n", s.Scanned)
	fmt.Fprintf(w, "  Bad dates:   %d\n", s.Total)
	fmt.Fprintf(w, "  Fixed:       %d\n", s.Fixed)
	fmt.Fprintf(w, "  Skipped:     %d\n", s.Skipped)
	fmt.Fprintf(w, "  Errors:      %d\n", s.Errored)
	if s.Unsubmitted > 0 {
		fmt.Fprintf(w, "  Not started: %d\n", s.Unsubmitted)
	}
}

// runIndex scans mediaDir into the catalog.
func runIndex(ctx context.Context, cat *catalog.Catalog, mediaDir string, progress *progressPrinter, out io.Writer) error {
	result, err := indexer.New(cat, mediaDir, 0).Index(ctx, progress)
	progress.Done()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Indexed %s in %s\n", mediaDir, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Files:   %d\n", result.Files)
	fmt.Fprintf(out, "  Folders: %d\n", result.Folders)
	fmt.Fprintf(out, "  Added:   %d\n", result.Added)
	fmt.Fprintf(out, "  Updated: %d\n", result.Updated)
	fmt.Fprintf(out, "  Removed: %d\n", result.Removed)
	return nil
}

func showStatus(ctx context.Context, cat *catalog.Catalog, out io.Writer) error {
	// Add timeout to context for database operations
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := cat.Stats(ctx, datefix.Threshold)
	if err != nil {
		return fmt.Errorf("read catalog stats: %w", err)
	}

	fmt.Fprintf(out, "Items:     %d\n", stats.Total)
	for _, kind := range []catalog.Kind{catalog.KindFolder, catalog.KindMovie, catalog.KindEpisode, catalog.KindAudio} {
		fmt.Fprintf(out, "  %-8s %d\n", kind+":", stats.ItemsByKind[kind])
	}
	if stats.BadDates == 0 {
		fmt.Fprintln(out, "Status: All creation dates are valid")
	} else {
		fmt.Fprintf(out, "Status: %d items have a DateCreated on or before %s\n",
			stats.BadDates, datefix.Threshold.Format("2006-01-02"))
	}
	return nil
}

// progressPrinter renders task progress. On a terminal it rewrites a single
// line; otherwise each report is printed on its own line.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	inPlace bool
	last    float64
	printed bool
}

func newProgressPrinter(f *os.File) *progressPrinter {
	return &progressPrinter{out: f, inPlace: term.IsTerminal(int(f.Fd()))}
}

// Report implements tasks.Progress.
func (p *progressPrinter) Report(percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Workers may report out of order
	if p.printed && percent < p.last {
		return
	}
	p.last = percent
	p.printed = true

	if p.inPlace {
		fmt.Fprintf(p.out, "\rProgress: %5.1f%%", percent)
		return
	}
	fmt.Fprintf(p.out, "Progress: %.1f%%\n", percent)
}

// Done terminates an in-place progress line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inPlace && p.printed {
		fmt.Fprintln(p.out)
	}
}
