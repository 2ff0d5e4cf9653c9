package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/indexer"
	"datecreated-fixer/internal/tasks"
)

// Catalog is the read side of the catalog used by the API.
type Catalog interface {
	GetItem(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
	Stats(ctx context.Context, badBefore time.Time) (catalog.Stats, error)
}

// TaskManager runs and reports on background tasks.
type TaskManager interface {
	List() []tasks.Status
	Status(key string) (tasks.Status, error)
	Start(key string) error
	Cancel(key string) error
}

// Indexer reports on library scans.
type Indexer interface {
	Key() string
	IsIndexing() bool
	LastIndexTime() time.Time
	LastResult() indexer.Result
}

// Fixer reports on the reactive corrector.
type Fixer interface {
	InFlight() int
}

type Handlers struct {
	catalog   Catalog
	tasks     TaskManager
	indexer   Indexer
	fixer     Fixer
	startTime time.Time
}

// New creates the API handlers. fixer may be nil when reactive fixing is
// disabled.
func New(cat Catalog, manager TaskManager, idx Indexer, fixer Fixer) *Handlers {
	return &Handlers{
		catalog:   cat,
		tasks:     manager,
		indexer:   idx,
		fixer:     fixer,
		startTime: time.Now(),
	}
}
