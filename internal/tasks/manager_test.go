package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTask blocks until released or canceled.
type fakeTask struct {
	key      string
	triggers []Trigger
	release  chan struct{}
	started  chan struct{}
	runs     atomic.Int32
	err      error
	panics   bool
}

func newFakeTask(key string) *fakeTask {
	return &fakeTask{
		key:     key,
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (f *fakeTask) Name() string               { return "Fake " + f.key }
func (f *fakeTask) Key() string                { return f.key }
func (f *fakeTask) Description() string        { return "test task" }
func (f *fakeTask) Category() string           { return "Test" }
func (f *fakeTask) DefaultTriggers() []Trigger { return f.triggers }

func (f *fakeTask) Execute(ctx context.Context, progress Progress) error {
	f.runs.Add(1)
	f.started <- struct{}{}
	if f.panics {
		panic("boom")
	}
	progress.Report(50)
	select {
	case <-f.release:
		progress.Report(100)
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func waitStarted(t *testing.T, f *fakeTask) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not start")
	}
}

func TestManagerRunToCompletion(t *testing.T) {
	m := newTestManager(t)
	task := newFakeTask("fake")
	if err := m.Register(task); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := m.Start("fake"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitStarted(t, task)

	status, err := m.Status("fake")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Running {
		t.Error("Status().Running = false during run")
	}

	if err := m.Start("fake"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	close(task.release)
	if err := m.Wait(context.Background(), "fake"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	status, _ = m.Status("fake")
	if status.Running {
		t.Error("Status().Running = true after completion")
	}
	if status.LastResult != "completed" {
		t.Errorf("LastResult = %q, want completed", status.LastResult)
	}
	if status.Progress != 100 {
		t.Errorf("Progress = %v, want 100", status.Progress)
	}
	if status.Runs != 1 || status.StartedAt == nil || status.FinishedAt == nil {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestManagerCancel(t *testing.T) {
	m := newTestManager(t)
	task := newFakeTask("fake")
	if err := m.Register(task); err != nil {
		t.Fatal(err)
	}

	if err := m.Cancel("fake"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Cancel() on idle task error = %v, want ErrNotRunning", err)
	}

	if err := m.Start("fake"); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, task)

	if err := m.Cancel("fake"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := m.Wait(context.Background(), "fake"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}

	status, _ := m.Status("fake")
	if status.LastResult != "canceled" {
		t.Errorf("LastResult = %q, want canceled", status.LastResult)
	}
}

func TestManagerFailureAndPanic(t *testing.T) {
	m := newTestManager(t)

	failing := newFakeTask("failing")
	failing.err = errors.New("disk on fire")
	close(failing.release)

	panicking := newFakeTask("panicking")
	panicking.panics = true

	for _, task := range []*fakeTask{failing, panicking} {
		if err := m.Register(task); err != nil {
			t.Fatal(err)
		}
		if err := m.Start(task.key); err != nil {
			t.Fatal(err)
		}
		if err := m.Wait(context.Background(), task.key); err == nil {
			t.Errorf("Wait(%s) error = nil, want failure", task.key)
		}
		status, _ := m.Status(task.key)
		if status.LastResult != "failed" || status.LastError == "" {
			t.Errorf("%s status = %+v, want failed with error", task.key, status)
		}
	}
}

func TestManagerUnknownAndDuplicate(t *testing.T) {
	m := newTestManager(t)

	if err := m.Start("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Start() error = %v, want ErrUnknownTask", err)
	}
	if _, err := m.Status("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Status() error = %v, want ErrUnknownTask", err)
	}
	if err := m.Cancel("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Cancel() error = %v, want ErrUnknownTask", err)
	}

	if err := m.Register(newFakeTask("dup")); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(newFakeTask("dup")); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Register() error = %v, want ErrDuplicateKey", err)
	}
}

func TestManagerTriggers(t *testing.T) {
	m := newTestManager(t)

	startup := newFakeTask("startup")
	startup.triggers = []Trigger{{Type: TriggerStartup}}
	close(startup.release)
	if err := m.Register(startup); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	waitStarted(t, startup)

	bad := newFakeTask("bad")
	bad.triggers = []Trigger{{Type: TriggerInterval}}
	if err := m.Register(bad); err == nil {
		t.Error("Register() with zero interval should fail")
	}

	manual := newFakeTask("manual")
	if err := m.Register(manual); err != nil {
		t.Fatal(err)
	}
	status, _ := m.Status("manual")
	if len(status.Triggers) != 0 || status.Runs != 0 {
		t.Errorf("manual task status = %+v, want no triggers and no runs", status)
	}
}

func TestManagerList(t *testing.T) {
	m := newTestManager(t)
	for _, key := range []string{"b", "a", "c"} {
		if err := m.Register(newFakeTask(key)); err != nil {
			t.Fatal(err)
		}
	}

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d tasks, want 3", len(list))
	}
	if list[0].Key != "a" || list[2].Key != "c" {
		t.Errorf("List() not sorted by name: %v, %v, %v", list[0].Key, list[1].Key, list[2].Key)
	}
}

func TestManagerShutdownCancelsRunning(t *testing.T) {
	m := NewManager()
	task := newFakeTask("fake")
	if err := m.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("fake"); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, task)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := m.Start("fake"); !errors.Is(err, ErrShutdown) {
		t.Errorf("Start() after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestProgressFunc(t *testing.T) {
	var got float64
	ProgressFunc(func(p float64) { got = p }).Report(42)
	if got != 42 {
		t.Errorf("Report() delivered %v, want 42", got)
	}
	Discard.Report(1)
}
