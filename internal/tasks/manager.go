package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
)

var (
	// ErrUnknownTask is returned for keys that were never registered.
	ErrUnknownTask = errors.New("tasks: unknown task")
	// ErrAlreadyRunning is returned when starting a task that is running.
	ErrAlreadyRunning = errors.New("tasks: task already running")
	// ErrNotRunning is returned when canceling a task that is idle.
	ErrNotRunning = errors.New("tasks: task not running")
	// ErrDuplicateKey is returned when registering a key twice.
	ErrDuplicateKey = errors.New("tasks: duplicate task key")
	// ErrShutdown is returned once the manager has been shut down.
	ErrShutdown = errors.New("tasks: manager shut down")
)

// Status is a snapshot of a registered task.
type Status struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Triggers     []Trigger  `json:"triggers"`
	Running      bool       `json:"running"`
	Progress     float64    `json:"progress"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	LastResult   string     `json:"lastResult,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
	Runs         int        `json:"runs"`
}

type entry struct {
	task     Task
	progress atomic.Uint64 // math.Float64bits of the last report

	// guarded by Manager.mu
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time
	finishedAt time.Time
	lastResult string
	lastErr    error
	runs       int
}

func (e *entry) Report(percent float64) {
	percent = math.Max(0, math.Min(100, percent))
	e.progress.Store(math.Float64bits(percent))
	metrics.TaskProgress.WithLabelValues(e.task.Key()).Set(percent)
}

// Manager runs registered tasks, at most one run per task at a time.
type Manager struct {
	mu        sync.Mutex
	entries   map[string]*entry
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
}

// NewManager creates a Manager and starts its scheduler.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.StartAsync()
	return &Manager{
		entries:   make(map[string]*entry),
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register adds task and installs its default triggers.
func (m *Manager) Register(task Task) error {
	key := task.Key()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	if _, exists := m.entries[key]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	m.entries[key] = &entry{task: task}
	m.mu.Unlock()

	for _, trigger := range task.DefaultTriggers() {
		if err := m.addTrigger(key, trigger); err != nil {
			return fmt.Errorf("task %s: %w", key, err)
		}
	}

	logging.Debug("Registered task %s (%s)", key, task.Name())
	return nil
}

func (m *Manager) addTrigger(key string, trigger Trigger) error {
	switch trigger.Type {
	case TriggerStartup:
		return m.startScheduled(key)
	case TriggerInterval:
		if trigger.Interval <= 0 {
			return fmt.Errorf("interval trigger needs a positive interval, got %v", trigger.Interval)
		}
		_, err := m.scheduler.Every(trigger.Interval).
			WaitForSchedule().
			Tag(key + "/interval").
			Do(m.startScheduled, key)
		return err
	default:
		return fmt.Errorf("unknown trigger type %q", trigger.Type)
	}
}

// startScheduled is the scheduler callback; overlapping runs are skipped.
func (m *Manager) startScheduled(key string) error {
	err := m.Start(key)
	switch {
	case err == nil:
		logging.Info("Scheduled run of task %s started", key)
	case errors.Is(err, ErrAlreadyRunning):
		logging.Debug("Skipping scheduled run of task %s: already running", key)
		return nil
	default:
		logging.Warn("Scheduled run of task %s failed to start: %v", key, err)
	}
	return err
}

// Start runs the task in the background. It returns ErrAlreadyRunning if a
// run is in progress.
func (m *Manager) Start(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShutdown
	}
	e, ok := m.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, key)
	}
	if e.running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, key)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.startedAt = time.Now()
	e.progress.Store(0)
	e.runs++

	m.wg.Add(1)
	go m.run(ctx, e)
	return nil
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()

	key := e.task.Key()
	metrics.TaskRunning.WithLabelValues(key).Set(1)
	logging.Info("Task %s started", e.task.Name())

	err := m.execute(ctx, e)

	result := "completed"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	default:
		result = "failed"
	}

	m.mu.Lock()
	e.running = false
	e.cancel()
	e.cancel = nil
	e.finishedAt = time.Now()
	e.lastResult = result
	e.lastErr = err
	duration := e.finishedAt.Sub(e.startedAt)
	close(e.done)
	m.mu.Unlock()

	metrics.TaskRunning.WithLabelValues(key).Set(0)
	metrics.TaskRunsTotal.WithLabelValues(key, result).Inc()

	switch result {
	case "completed":
		logging.Info("Task %s completed in %v", e.task.Name(), duration)
	case "canceled":
		logging.Info("Task %s canceled after %v", e.task.Name(), duration)
	default:
		logging.Error("Task %s failed after %v: %v", e.task.Name(), duration, err)
	}
}

// execute runs the task, converting a panic into an error.
func (m *Manager) execute(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", e.task.Key(), r)
		}
	}()
	return e.task.Execute(ctx, e)
}

// Cancel requests cancellation of a running task.
func (m *Manager) Cancel(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, key)
	}
	if !e.running {
		return fmt.Errorf("%w: %s", ErrNotRunning, key)
	}
	e.cancel()
	logging.Info("Cancellation requested for task %s", key)
	return nil
}

// Wait blocks until the current run of key finishes or ctx is done. It
// returns the run's error. Waiting on an idle task returns its last error.
func (m *Manager) Wait(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, key)
	}
	done := e.done
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return e.lastErr
}

// Status returns a snapshot of one task.
func (m *Manager) Status(key string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownTask, key)
	}
	return e.status(), nil
}

// List returns snapshots of all tasks ordered by category then name.
func (m *Manager) List() []Status {
	m.mu.Lock()
	statuses := make([]Status, 0, len(m.entries))
	for _, e := range m.entries {
		statuses = append(statuses, e.status())
	}
	m.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Category != statuses[j].Category {
			return statuses[i].Category < statuses[j].Category
		}
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// status builds a snapshot. Callers hold Manager.mu.
func (e *entry) status() Status {
	s := Status{
		Key:         e.task.Key(),
		Name:        e.task.Name(),
		Description: e.task.Description(),
		Category:    e.task.Category(),
		Triggers:    e.task.DefaultTriggers(),
		Running:     e.running,
		Progress:    math.Float64frombits(e.progress.Load()),
		LastResult:  e.lastResult,
		Runs:        e.runs,
	}
	if s.Triggers == nil {
		s.Triggers = []Trigger{}
	}
	if !e.startedAt.IsZero() {
		started := e.startedAt
		s.StartedAt = &started
	}
	if !e.finishedAt.IsZero() && !e.running {
		finished := e.finishedAt
		s.FinishedAt = &finished
		s.LastDuration = finished.Sub(e.startedAt).Round(time.Millisecond).String()
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

// Shutdown stops the scheduler, cancels running tasks and waits for them
// to return or for ctx to be done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Stop()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks to stop: %w", ctx.Err())
	}
}
