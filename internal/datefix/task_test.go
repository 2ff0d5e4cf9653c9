package datefix

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/tasks"
)

// fixableLibrary returns n movies with bad dates and matching files.
func fixableLibrary(n int) ([]*catalog.Item, map[string]time.Time) {
	items := make([]*catalog.Item, n)
	files := make(map[string]time.Time, n)
	for i := range items {
		path := fmt.Sprintf("/m/%04d.mkv", i)
		items[i] = &catalog.Item{ID: uuid.New(), Name: fmt.Sprintf("%04d.mkv", i), Kind: catalog.KindMovie, Path: path, DateCreated: badDate}
		files[path] = fileMtime
	}
	return items, files
}

func newTestTask(store *memCatalog, probe FileProber, cfg TaskConfig) *Task {
	return NewTask(store, newTestCorrector(store, probe), cfg)
}

func TestTaskMetadata(t *testing.T) {
	var task tasks.Task = NewTask(newMemCatalog(), NewCorrector(newMemCatalog(), &fakeProbe{}), TaskConfig{})

	if task.Key() != "DateCreatedFixer" {
		t.Errorf("Key() = %q", task.Key())
	}
	if task.Name() != "Fix DateCreated Values" {
		t.Errorf("Name() = %q", task.Name())
	}
	if task.Category() != "Library" {
		t.Errorf("Category() = %q", task.Category())
	}
	if task.Description() == "" {
		t.Error("Description() is empty")
	}
	if triggers := task.DefaultTriggers(); len(triggers) != 0 {
		t.Errorf("DefaultTriggers() = %v, want none", triggers)
	}
}

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask(newMemCatalog(), nil, TaskConfig{Concurrency: -1, ProgressEvery: -5})
	if task.cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", task.cfg.Concurrency, DefaultConcurrency)
	}
	if task.cfg.ProgressEvery != DefaultProgressEvery {
		t.Errorf("ProgressEvery = %d, want %d", task.cfg.ProgressEvery, DefaultProgressEvery)
	}
	if len(task.cfg.Kinds) != len(catalog.MediaKinds) {
		t.Errorf("Kinds = %v, want %v", task.cfg.Kinds, catalog.MediaKinds)
	}
}

func TestTaskRunScenarios(t *testing.T) {
	fixable := &catalog.Item{ID: uuid.New(), Name: "a.mkv", Kind: catalog.KindMovie, Path: "/m/a.mkv", DateCreated: badDate}
	missing := &catalog.Item{ID: uuid.New(), Name: "missing", Kind: catalog.KindEpisode, Path: "/missing", DateCreated: badDate}
	recent := &catalog.Item{ID: uuid.New(), Name: "b.mkv", Kind: catalog.KindMovie, Path: "/m/b.mkv", DateCreated: goodDate}
	virtual := &catalog.Item{ID: uuid.New(), Name: "Mix", Kind: catalog.KindAudio, DateCreated: badDate}
	folder := &catalog.Item{ID: uuid.New(), Name: "m", Kind: catalog.KindFolder, Path: "/m", DateCreated: badDate}

	store := newMemCatalog(fixable, missing, recent, virtual, folder)
	probe := &fakeProbe{files: map[string]time.Time{"/m/a.mkv": fileMtime, "/m/b.mkv": fileMtime, "/m": fileMtime}}
	task := newTestTask(store, probe, DefaultTaskConfig())
	progress := &progressRecorder{}

	summary, err := task.Run(context.Background(), progress)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !store.lastQuery.Recursive || len(store.lastQuery.Kinds) != 3 {
		t.Errorf("query = %+v, want recursive media kinds", store.lastQuery)
	}
	if summary.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4 (folders excluded)", summary.Scanned)
	}
	// recent is filtered out by year, virtual by missing path
	if summary.Total != 2 {
		t.Errorf("Total = %d, want 2", summary.Total)
	}
	if summary.Fixed != 1 || summary.Skipped != 1 || summary.Errored != 0 || summary.Unsubmitted != 0 {
		t.Errorf("summary = %+v, want 1 fixed 1 skipped", summary)
	}
	if got := store.get(fixable.ID).DateCreated; !got.Equal(fileMtime) {
		t.Errorf("fixed DateCreated = %v, want %v", got, fileMtime)
	}
	if got := store.get(missing.ID).DateCreated; !got.Equal(badDate) {
		t.Errorf("missing DateCreated = %v, want unchanged", got)
	}

	reports := progress.snapshot()
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want final 100", reports)
	}

	last, ok := task.LastSummary()
	if !ok || last.Fixed != summary.Fixed {
		t.Errorf("LastSummary() = %+v, %v", last, ok)
	}
}

func TestTaskIdempotent(t *testing.T) {
	items, files := fixableLibrary(40)
	store := newMemCatalog(items...)
	task := newTestTask(store, &fakeProbe{files: files}, DefaultTaskConfig())

	first, err := task.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Fixed != 40 {
		t.Errorf("first run Fixed = %d, want 40", first.Fixed)
	}

	second, err := task.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Fixed != 0 || second.Total != 0 {
		t.Errorf("second run = %+v, want no work", second)
	}
	if got := store.updates.Load(); got != 40 {
		t.Errorf("updates = %d, want 40", got)
	}
}

func TestTaskConcurrencyBound(t *testing.T) {
	for _, limit := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			items, files := fixableLibrary(120)
			store := newMemCatalog(items...)
			store.delay = time.Millisecond
			task := newTestTask(store, &fakeProbe{files: files}, TaskConfig{Concurrency: limit})

			summary, err := task.Run(context.Background(), nil)
			if err != nil {
				t.Fatal(err)
			}
			if summary.Fixed != 120 {
				t.Errorf("Fixed = %d, want 120", summary.Fixed)
			}
			if peak := store.peak.Load(); peak > int32(limit) {
				t.Errorf("peak concurrency = %d, want <= %d", peak, limit)
			}
		})
	}
}

func TestTaskCancellation(t *testing.T) {
	const n, m = 50, 10

	items, files := fixableLibrary(n)
	store := newMemCatalog(items...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var saved atomic.Int32
	store.hook = func(context.Context, *catalog.Item) error {
		if saved.Add(1) == m {
			cancel()
		}
		return nil
	}
	progress := &progressRecorder{}
	task := newTestTask(store, &fakeProbe{files: files}, TaskConfig{Concurrency: 1})

	summary, err := task.Run(ctx, progress)
	if !errors.Is(err, context.Canceled) || !IsCanceled(err) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !summary.Canceled {
		t.Error("Summary.Canceled = false")
	}
	if got := saved.Load(); got != m {
		t.Errorf("submitted saves = %d, want %d", got, m)
	}
	if summary.Unsubmitted != n-m {
		t.Errorf("Unsubmitted = %d, want %d", summary.Unsubmitted, n-m)
	}
	if sum := summary.Fixed + summary.Skipped + summary.Errored + int64(summary.Unsubmitted); sum != n {
		t.Errorf("counts add up to %d, want %d (%+v)", sum, n, summary)
	}
	for _, p := range progress.snapshot() {
		if p == 100 {
			t.Error("canceled run reported 100% progress")
		}
	}
}

func TestTaskCanceledBeforeStart(t *testing.T) {
	items, files := fixableLibrary(5)
	store := newMemCatalog(items...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestTask(store, &fakeProbe{files: files}, DefaultTaskConfig()).Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary.Unsubmitted != 5 || store.updates.Load() != 0 {
		t.Errorf("summary = %+v updates = %d, want nothing submitted", summary, store.updates.Load())
	}
}

func TestTaskProgress(t *testing.T) {
	items, files := fixableLibrary(4)
	store := newMemCatalog(items...)
	progress := &progressRecorder{}
	task := newTestTask(store, &fakeProbe{files: files}, TaskConfig{Concurrency: 1, ProgressEvery: 2})

	if _, err := task.Run(context.Background(), progress); err != nil {
		t.Fatal(err)
	}

	want := []float64{50, 100, 100}
	got := progress.snapshot()
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTaskFailuresDoNotAbort(t *testing.T) {
	items, files := fixableLibrary(10)
	store := newMemCatalog(items...)
	broken := items[3].Path
	store.hook = func(_ context.Context, item *catalog.Item) error {
		if item.Path == broken {
			return errors.New("database is locked")
		}
		return nil
	}

	summary, err := newTestTask(store, &fakeProbe{files: files}, DefaultTaskConfig()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Fixed != 9 || summary.Errored != 1 {
		t.Errorf("summary = %+v, want 9 fixed 1 errored", summary)
	}
}

func TestTaskQueryError(t *testing.T) {
	store := newMemCatalog()
	store.queryErr = errors.New("no such table")

	if _, err := newTestTask(store, &fakeProbe{}, DefaultTaskConfig()).Run(context.Background(), nil); err == nil {
		t.Error("Run() error = nil, want query failure")
	}
}

func TestTaskExecuteUnderManager(t *testing.T) {
	items, files := fixableLibrary(3)
	store := newMemCatalog(items...)
	task := newTestTask(store, &fakeProbe{files: files}, DefaultTaskConfig())

	m := tasks.NewManager()
	defer m.Shutdown(context.Background())

	if err := m.Register(task); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(task.Key()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx, task.Key()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	status, err := m.Status(task.Key())
	if err != nil {
		t.Fatal(err)
	}
	if status.Progress != 100 || status.LastResult != "completed" {
		t.Errorf("status = %+v", status)
	}
	if store.updates.Load() != 3 {
		t.Errorf("updates = %d, want 3", store.updates.Load())
	}
}

// gate is a Backpressure that counts waits and can refuse them.
type gate struct {
	waits atomic.Int32
	err   error
}

func (g *gate) Wait(context.Context) error {
	g.waits.Add(1)
	return g.err
}

func TestTaskBackpressure(t *testing.T) {
	t.Run("waits before each submission", func(t *testing.T) {
		items, files := fixableLibrary(6)
		store := newMemCatalog(items...)
		task := newTestTask(store, &fakeProbe{files: files}, TaskConfig{Concurrency: 2})
		g := &gate{}
		task.SetBackpressure(g)

		summary, err := task.Run(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Fixed != 6 {
			t.Errorf("Fixed = %d, want 6", summary.Fixed)
		}
		if got := g.waits.Load(); got != 6 {
			t.Errorf("waits = %d, want 6", got)
		}
	})

	t.Run("wait error stops submission", func(t *testing.T) {
		items, files := fixableLibrary(3)
		store := newMemCatalog(items...)
		task := newTestTask(store, &fakeProbe{files: files}, TaskConfig{Concurrency: 1})
		task.SetBackpressure(&gate{err: context.DeadlineExceeded})

		summary, err := task.Run(context.Background(), nil)
		if !IsCanceled(err) {
			t.Fatalf("Run() error = %v, want deadline exceeded", err)
		}
		if summary.Unsubmitted != 3 || store.updates.Load() != 0 {
			t.Errorf("summary = %+v, want nothing submitted", summary)
		}
	})
}
