package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/filesystem"
	"datecreated-fixer/internal/handlers"
	"datecreated-fixer/internal/indexer"
	"datecreated-fixer/internal/tasks"
)

// mockStatsCatalog implements the catalog methods used by catalogStatsAdapter
type mockStatsCatalog struct {
	stats         catalog.Stats
	err           error
	badBefore     time.Time
	metricsCalled bool
}

func (m *mockStatsCatalog) Stats(_ context.Context, badBefore time.Time) (catalog.Stats, error) {
	m.badBefore = badBefore
	return m.stats, m.err
}

func (m *mockStatsCatalog) UpdateMetrics() {
	m.metricsCalled = true
}

func TestCatalogStatsAdapter(t *testing.T) {
	mock := &mockStatsCatalog{
		stats: catalog.Stats{
			ItemsByKind: map[catalog.Kind]int{catalog.KindMovie: 3, catalog.KindFolder: 2},
			Total:       5,
			BadDates:    4,
		},
	}
	adapter := &catalogStatsAdapter{cat: mock}

	stats, err := adapter.CollectStats(context.Background())
	if err != nil {
		t.Fatalf("CollectStats() error = %v", err)
	}

	if !mock.metricsCalled {
		t.Error("expected UpdateMetrics to be called")
	}
	if !mock.badBefore.Equal(datefix.Threshold) {
		t.Errorf("Stats called with %v, want %v", mock.badBefore, datefix.Threshold)
	}
	if stats.BadDates != 4 {
		t.Errorf("BadDates = %d, want 4", stats.BadDates)
	}
	if stats.ItemsByKind["movie"] != 3 || stats.ItemsByKind["folder"] != 2 {
		t.Errorf("ItemsByKind = %v", stats.ItemsByKind)
	}
}

func TestCatalogStatsAdapterError(t *testing.T) {
	boom := errors.New("database is locked")
	adapter := &catalogStatsAdapter{cat: &mockStatsCatalog{err: boom}}

	if _, err := adapter.CollectStats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("CollectStats() error = %v, want %v", err, boom)
	}
}

func setupTestRouter(t *testing.T) (http.Handler, *tasks.Manager) {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.New(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}

	corrector := datefix.NewCorrector(cat, filesystem.NewProbe(filesystem.DefaultRetryConfig()))
	manager := tasks.NewManager()
	if err := manager.Register(datefix.NewTask(cat, corrector, datefix.DefaultTaskConfig())); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
		_ = cat.Close()
	})

	// The indexer is not registered so no startup scan runs
	idx := indexer.New(cat, t.TempDir(), 0)
	return setupRouter(handlers.New(cat, manager, idx, nil)), manager
}

func TestSetupRouter(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodHead, "/livez", http.StatusOK},
		{http.MethodGet, "/health", http.StatusServiceUnavailable}, // no scan yet
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/tasks", http.StatusOK},
		{http.MethodGet, "/api/tasks/DateCreatedFixer", http.StatusOK},
		{http.MethodGet, "/api/tasks/Nope", http.StatusNotFound},
		{http.MethodDelete, "/api/tasks/DateCreatedFixer", http.StatusConflict},
		{http.MethodPost, "/api/reindex", http.StatusNotFound},
		{http.MethodGet, "/api/items/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/items/6f1b7c0e-4d7a-5c39-9f52-8c2a1e0d3b47", http.StatusNotFound},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodPut, "/api/stats", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRunTaskThroughRouter(t *testing.T) {
	router, manager := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/DateCreatedFixer/run", http.NoBody))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Wait(ctx, "DateCreatedFixer"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	status, err := manager.Status("DateCreatedFixer")
	if err != nil {
		t.Fatal(err)
	}
	if status.LastResult != "completed" {
		t.Errorf("LastResult = %q, want completed", status.LastResult)
	}
}
