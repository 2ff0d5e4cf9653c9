package datefix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
	"datecreated-fixer/internal/tasks"
)

const (
	// DefaultConcurrency bounds in-flight corrections during a sweep.
	DefaultConcurrency = 16
	// DefaultProgressEvery is the number of fixes between progress reports.
	DefaultProgressEvery = 500
)

// Querier enumerates catalog items.
type Querier interface {
	QueryItems(ctx context.Context, q catalog.Query) ([]*catalog.Item, error)
}

// Backpressure holds back submission, for example under memory pressure.
// Wait returns nil when the sweep may proceed.
type Backpressure interface {
	Wait(ctx context.Context) error
}

// TaskConfig tunes a sweep.
type TaskConfig struct {
	// Concurrency is the maximum number of items corrected at once.
	Concurrency int
	// ProgressEvery reports progress after this many fixes. 0 disables
	// intermediate reports; the final 100% is always sent on success.
	ProgressEvery int
	// Kinds are the item kinds to sweep.
	Kinds []catalog.Kind
}

// DefaultTaskConfig returns the standard sweep settings.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		Concurrency:   DefaultConcurrency,
		ProgressEvery: DefaultProgressEvery,
		Kinds:         catalog.MediaKinds,
	}
}

// Summary reports the counts of one sweep. Fixed, Skipped, Errored and
// Unsubmitted always add up to Total.
type Summary struct {
	Scanned     int           `json:"scanned"`
	Total       int           `json:"total"`
	Fixed       int64         `json:"fixed"`
	Skipped     int64         `json:"skipped"`
	Errored     int64         `json:"errored"`
	Unsubmitted int           `json:"unsubmitted"`
	Duration    time.Duration `json:"duration"`
	Canceled    bool          `json:"canceled"`
}

// Task sweeps the whole catalog for items with a bad DateCreated. It does
// not subscribe to catalog events and needs no Guard.
type Task struct {
	items     Querier
	corrector *Corrector
	cfg       TaskConfig
	pressure  Backpressure
	log       logging.Logger

	mu   sync.Mutex
	last *Summary
}

var _ tasks.Task = (*Task)(nil)

// NewTask creates the sweep task. Zero or negative config values fall back
// to the defaults.
func NewTask(items Querier, corrector *Corrector, cfg TaskConfig) *Task {
	def := DefaultTaskConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ProgressEvery < 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = def.Kinds
	}
	return &Task{
		items:     items,
		corrector: corrector,
		cfg:       cfg,
		log:       logging.Named("DateCreatedFixer"),
	}
}

// SetBackpressure makes the sweep wait on b before submitting each item.
// Call it before the task is registered.
func (t *Task) SetBackpressure(b Backpressure) {
	t.pressure = b
}

func (t *Task) Name() string { return "Fix DateCreated Values" }

func (t *Task) Key() string { return "DateCreatedFixer" }

func (t *Task) Description() string {
	return "Finds media items whose creation date is on or before 2000-01-01 and replaces it with the file's last modification time (UTC)."
}

func (t *Task) Category() string { return "Library" }

// DefaultTriggers is empty: the sweep only runs when started manually.
func (t *Task) DefaultTriggers() []tasks.Trigger { return []tasks.Trigger{} }

// Execute runs a sweep for the task manager.
func (t *Task) Execute(ctx context.Context, progress tasks.Progress) error {
	_, err := t.Run(ctx, progress)
	return err
}

// LastSummary returns the summary of the most recent sweep.
func (t *Task) LastSummary() (Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Summary{}, false
	}
	return *t.last, true
}

// Run sweeps the catalog once. It returns after every dispatched item has
// finished. When ctx is canceled no further items are submitted and the
// partial summary is returned together with ctx's error.
func (t *Task) Run(ctx context.Context, progress tasks.Progress) (Summary, error) {
	if progress == nil {
		progress = tasks.Discard
	}
	start := time.Now()
	metrics.BatchIsRunning.Set(1)
	defer metrics.BatchIsRunning.Set(0)

	t.log.Info("Batch task starting")

	all, err := t.items.QueryItems(ctx, catalog.Query{Kinds: t.cfg.Kinds, Recursive: true})
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("failed").Inc()
		t.log.Error("Failed to query items: %v", err)
		return Summary{}, fmt.Errorf("query items: %w", err)
	}

	// Pre-filter to items with bad dates to avoid evaluating the full library
	toFix := make([]*catalog.Item, 0, len(all)/8)
	for _, item := range all {
		if needsBatchFix(item.DateCreated, item.Path) {
			toFix = append(toFix, item)
		}
	}
	t.log.Info("Found %d total items, %d with bad dates to check", len(all), len(toFix))

	var (
		sem       = semaphore.NewWeighted(int64(t.cfg.Concurrency))
		wg        sync.WaitGroup
		fixed     atomic.Int64
		skipped   atomic.Int64
		errored   atomic.Int64
		processed atomic.Int64
		submitted int
		runErr    error
		total     = len(toFix)
	)

	for _, item := range toFix {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		if t.pressure != nil {
			if runErr = t.pressure.Wait(ctx); runErr != nil {
				break
			}
		}
		if runErr = sem.Acquire(ctx, 1); runErr != nil {
			break
		}
		// Acquire may succeed on an already canceled context
		if runErr = ctx.Err(); runErr != nil {
			sem.Release(1)
			break
		}

		submitted++
		wg.Add(1)
		metrics.BatchInFlight.Inc()

		go func(item *catalog.Item) {
			defer wg.Done()
			defer sem.Release(1)
			defer metrics.BatchInFlight.Dec()

			out := t.corrector.Correct(ctx, item)
			done := processed.Add(1)
			recordOutcome("batch", out)

			switch out.Kind {
			case Fixed:
				n := fixed.Add(1)
				if t.cfg.ProgressEvery > 0 && n%int64(t.cfg.ProgressEvery) == 0 {
					progress.Report(float64(done) / float64(total) * 100)
					t.log.Info("Fixed %d items so far...", n)
				}
			case Skipped:
				skipped.Add(1)
			case Failed:
				errored.Add(1)
				t.log.Warn("Error fixing %s: %v", item.Name, out.Err)
			}
		}(item)
	}

	wg.Wait()

	summary := Summary{
		Scanned:     len(all),
		Total:       total,
		Fixed:       fixed.Load(),
		Skipped:     skipped.Load(),
		Errored:     errored.Load(),
		Unsubmitted: total - submitted,
		Duration:    time.Since(start),
		Canceled:    runErr != nil,
	}
	t.record(summary)

	if runErr != nil {
		t.log.Info("Batch task canceled after %d of %d items. Fixed: %d, Skipped: %d, Errors: %d",
			submitted, total, summary.Fixed, summary.Skipped, summary.Errored)
		return summary, runErr
	}

	progress.Report(100)
	t.log.Info("Batch task completed. Fixed: %d, Skipped: %d, Errors: %d",
		summary.Fixed, summary.Skipped, summary.Errored)
	return summary, nil
}

func (t *Task) record(s Summary) {
	t.mu.Lock()
	t.last = &s
	t.mu.Unlock()

	result := "completed"
	if s.Canceled {
		result = "canceled"
	}
	metrics.BatchRunsTotal.WithLabelValues(result).Inc()
	metrics.BatchRunDuration.Observe(s.Duration.Seconds())
	metrics.BatchLastRunTimestamp.SetToCurrentTime()
	metrics.BatchLastRunItems.WithLabelValues("fixed").Set(float64(s.Fixed))
	metrics.BatchLastRunItems.WithLabelValues("skipped").Set(float64(s.Skipped))
	metrics.BatchLastRunItems.WithLabelValues("errored").Set(float64(s.Errored))
	metrics.BatchLastRunItems.WithLabelValues("unsubmitted").Set(float64(s.Unsubmitted))
}

// IsCanceled reports whether err ended a sweep early.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
