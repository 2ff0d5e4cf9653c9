package datefix

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/filesystem"
)

// memCatalog is an in-memory catalog. UpdateItem optionally re-emits
// ItemUpdated synchronously, as the real catalog does.
type memCatalog struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*catalog.Item
	handlers map[int]catalog.Handler
	nextSub  int

	// reemit delivers ItemUpdated with the saved item from inside UpdateItem.
	reemit bool
	// reemitStale delivers ItemUpdated with the item as it was before the save.
	reemitStale bool
	// hook runs inside UpdateItem before the item is stored.
	hook  func(ctx context.Context, item *catalog.Item) error
	delay time.Duration

	updates   atomic.Int32
	active    atomic.Int32
	peak      atomic.Int32
	lastQuery catalog.Query
	queryErr  error
	parentErr error
	parents   []*catalog.Item
}

func newMemCatalog(items ...*catalog.Item) *memCatalog {
	m := &memCatalog{
		items:    make(map[uuid.UUID]*catalog.Item),
		handlers: make(map[int]catalog.Handler),
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		m.items[item.ID] = item.Clone()
	}
	return m
}

func (m *memCatalog) QueryItems(_ context.Context, q catalog.Query) ([]*catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastQuery = q
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	var out []*catalog.Item
	for _, item := range m.items {
		if len(q.Kinds) > 0 && !containsKind(q.Kinds, item.Kind) {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func containsKind(kinds []catalog.Kind, k catalog.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func (m *memCatalog) GetParent(_ context.Context, item *catalog.Item) (*catalog.Item, error) {
	if m.parentErr != nil {
		return nil, m.parentErr
	}
	if !item.HasParent() {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.items[item.ParentID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return parent.Clone(), nil
}

func (m *memCatalog) UpdateItem(ctx context.Context, item, parent *catalog.Item, _ catalog.UpdateKind) error {
	cur := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.peak.Load()
		if cur <= peak || m.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.hook != nil {
		if err := m.hook(ctx, item); err != nil {
			return err
		}
	}

	m.mu.Lock()
	stale := m.items[item.ID].Clone()
	m.items[item.ID] = item.Clone()
	m.parents = append(m.parents, parent)
	m.mu.Unlock()
	m.updates.Add(1)

	if m.reemitStale && stale != nil {
		m.emit(catalog.Event{Type: catalog.ItemUpdated, Item: stale, UpdateKind: catalog.UpdateMetadataEdit})
	}
	if m.reemit {
		m.emit(catalog.Event{Type: catalog.ItemUpdated, Item: item.Clone(), UpdateKind: catalog.UpdateMetadataEdit})
	}
	return nil
}

func (m *memCatalog) Subscribe(handler catalog.Handler) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.handlers[id] = handler
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

func (m *memCatalog) emit(evt catalog.Event) {
	m.mu.Lock()
	handlers := make([]catalog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (m *memCatalog) get(id uuid.UUID) *catalog.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Clone()
}

// fakeProbe serves file states from a map. Paths not in the map are missing.
type fakeProbe struct {
	mu    sync.Mutex
	files map[string]time.Time
	err   error
	panic bool
	calls atomic.Int32
}

func (p *fakeProbe) Stat(path string) (filesystem.FileState, error) {
	p.calls.Add(1)
	if p.panic {
		panic("probe exploded")
	}
	if p.err != nil {
		return filesystem.FileState{}, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	mt, ok := p.files[path]
	if !ok {
		return filesystem.FileState{}, nil
	}
	return filesystem.FileState{Exists: true, ModTime: mt}, nil
}

// progressRecorder collects progress reports.
type progressRecorder struct {
	mu      sync.Mutex
	reports []float64
}

func (r *progressRecorder) Report(p float64) {
	r.mu.Lock()
	r.reports = append(r.reports, p)
	r.mu.Unlock()
}

func (r *progressRecorder) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.reports...)
}

var (
	badDate   = time.Date(1999, 6, 1, 0, 0, 0, 0, time.UTC)
	goodDate  = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	fileMtime = time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)
)
