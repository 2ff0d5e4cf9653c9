package datefix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"datecreated-fixer/internal/catalog"
)

func newTestCorrector(store Updater, probe FileProber) *Corrector {
	c := NewCorrector(store, probe)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCorrectScenarios(t *testing.T) {
	folder := &catalog.Item{ID: uuid.New(), Name: "m", Kind: catalog.KindFolder, Path: "/m"}
	fixable := &catalog.Item{ID: uuid.New(), Name: "a.mkv", Kind: catalog.KindMovie, Path: "/m/a.mkv", ParentID: folder.ID, DateCreated: badDate}
	missing := &catalog.Item{ID: uuid.New(), Name: "missing", Kind: catalog.KindMovie, Path: "/missing", DateCreated: badDate}
	recent := &catalog.Item{ID: uuid.New(), Name: "b.mkv", Kind: catalog.KindMovie, Path: "/m/b.mkv", DateCreated: goodDate}

	tests := []struct {
		name       string
		item       *catalog.Item
		wantKind   OutcomeKind
		wantReason Reason
		wantDate   time.Time
		wantProbes int32
	}{
		{"fixes bad date from mtime", fixable, Fixed, ReasonNone, fileMtime, 1},
		{"skips missing file", missing, Skipped, ReasonFileMissing, badDate, 1},
		{"skips good date without probing", recent, Skipped, ReasonNotBad, goodDate, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemCatalog(folder, tt.item)
			probe := &fakeProbe{files: map[string]time.Time{"/m/a.mkv": fileMtime, "/m/b.mkv": fileMtime}}
			c := newTestCorrector(store, probe)

			item := tt.item.Clone()
			out := c.Correct(context.Background(), item)

			if out.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (err: %v)", out.Kind, tt.wantKind, out.Err)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", out.Reason, tt.wantReason)
			}
			if !item.DateCreated.Equal(tt.wantDate) {
				t.Errorf("DateCreated = %v, want %v", item.DateCreated, tt.wantDate)
			}
			if got := probe.calls.Load(); got != tt.wantProbes {
				t.Errorf("probe calls = %d, want %d", got, tt.wantProbes)
			}

			wantUpdates := int32(0)
			if tt.wantKind == Fixed {
				wantUpdates = 1
			}
			if got := store.updates.Load(); got != wantUpdates {
				t.Errorf("updates = %d, want %d", got, wantUpdates)
			}
		})
	}
}

func TestCorrectSavesUnderParent(t *testing.T) {
	folder := &catalog.Item{ID: uuid.New(), Name: "m", Kind: catalog.KindFolder, Path: "/m"}
	item := &catalog.Item{ID: uuid.New(), Name: "a.mkv", Kind: catalog.KindMovie, Path: "/m/a.mkv", ParentID: folder.ID, DateCreated: badDate}
	store := newMemCatalog(folder, item)
	c := newTestCorrector(store, &fakeProbe{files: map[string]time.Time{"/m/a.mkv": fileMtime}})

	out := c.Correct(context.Background(), item)
	if out.Kind != Fixed {
		t.Fatalf("Kind = %v, want fixed", out.Kind)
	}
	if !out.Previous.Equal(badDate) || !out.NewTimestamp.Equal(fileMtime) {
		t.Errorf("Previous = %v NewTimestamp = %v", out.Previous, out.NewTimestamp)
	}
	if len(store.parents) != 1 || store.parents[0] == nil || store.parents[0].ID != folder.ID {
		t.Errorf("UpdateItem parent = %+v, want folder", store.parents)
	}
	if got := store.get(item.ID).DateCreated; !got.Equal(fileMtime) {
		t.Errorf("stored DateCreated = %v, want %v", got, fileMtime)
	}
}

func TestCorrectNotFileBacked(t *testing.T) {
	store := newMemCatalog()
	probe := &fakeProbe{}
	c := newTestCorrector(store, probe)

	out := c.Correct(context.Background(), &catalog.Item{ID: uuid.New(), Name: "virtual", DateCreated: badDate})
	if out.Kind != Skipped || out.Reason != ReasonNotFileBacked {
		t.Errorf("Outcome = %+v, want skipped not_file_backed", out)
	}
	if probe.calls.Load() != 0 {
		t.Error("probe should not be called for items without a path")
	}
}

func TestCorrectFailures(t *testing.T) {
	newItem := func() *catalog.Item {
		return &catalog.Item{ID: uuid.New(), Name: "a.mkv", Kind: catalog.KindMovie, Path: "/m/a.mkv", DateCreated: badDate}
	}
	files := map[string]time.Time{"/m/a.mkv": fileMtime}

	tests := []struct {
		name    string
		setup   func(store *memCatalog, probe *fakeProbe)
		wantErr error
	}{
		{
			name:    "probe error",
			setup:   func(_ *memCatalog, p *fakeProbe) { p.err = errors.New("permission denied") },
			wantErr: ErrUnexpectedFailure,
		},
		{
			name:    "probe panic",
			setup:   func(_ *memCatalog, p *fakeProbe) { p.panic = true },
			wantErr: ErrUnexpectedFailure,
		},
		{
			name: "update error",
			setup: func(s *memCatalog, _ *fakeProbe) {
				s.hook = func(context.Context, *catalog.Item) error { return errors.New("database is locked") }
			},
			wantErr: ErrUpdateFailed,
		},
		{
			name:    "parent lookup error",
			setup:   func(s *memCatalog, _ *fakeProbe) { s.parentErr = errors.New("boom") },
			wantErr: ErrUpdateFailed,
		},
		{
			name: "update panic",
			setup: func(s *memCatalog, _ *fakeProbe) {
				s.hook = func(context.Context, *catalog.Item) error { panic("nil map") }
			},
			wantErr: ErrUnexpectedFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newItem()
			store := newMemCatalog(item)
			probe := &fakeProbe{files: files}
			tt.setup(store, probe)

			out := newTestCorrector(store, probe).Correct(context.Background(), item)
			if out.Kind != Failed {
				t.Fatalf("Kind = %v, want failed", out.Kind)
			}
			if !errors.Is(out.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", out.Err, tt.wantErr)
			}
			if store.updates.Load() != 0 {
				t.Errorf("updates = %d, want 0", store.updates.Load())
			}
		})
	}
}

func TestCorrectRejectsFutureMtime(t *testing.T) {
	item := &catalog.Item{ID: uuid.New(), Name: "a.mkv", Kind: catalog.KindMovie, Path: "/m/a.mkv", DateCreated: badDate}
	store := newMemCatalog(item)
	probe := &fakeProbe{files: map[string]time.Time{"/m/a.mkv": time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}}

	out := newTestCorrector(store, probe).Correct(context.Background(), item)
	if out.Kind != Skipped || out.Reason != ReasonTimestampInvalid {
		t.Errorf("Outcome = %+v, want skipped candidate_timestamp_invalid", out)
	}
	if !item.DateCreated.Equal(badDate) {
		t.Errorf("DateCreated mutated to %v on skip", item.DateCreated)
	}
}

func TestOutcomeKindString(t *testing.T) {
	for kind, want := range map[OutcomeKind]string{Fixed: "fixed", Skipped: "skipped", Failed: "failed", OutcomeKind(9): "unknown"} {
		if got := kind.String(); got != want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
