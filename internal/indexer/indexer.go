package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/mediatypes"
	"datecreated-fixer/internal/metrics"
	"datecreated-fixer/internal/tasks"
)

// ErrAlreadyIndexing is returned by Index while another scan is running.
var ErrAlreadyIndexing = errors.New("indexer: scan already in progress")

// Store is the part of the catalog the indexer writes to.
type Store interface {
	UpsertBatch(ctx context.Context, items []*catalog.Item) (added, updated int, err error)
	DeleteMissing(ctx context.Context, cutoff time.Time) (int64, error)
}

// Indexer mirrors the media directory into the catalog.
type Indexer struct {
	store    Store
	mediaDir string
	interval time.Duration
	config   ParallelWalkerConfig

	indexMu       sync.Mutex
	isIndexing    bool
	lastIndexTime time.Time
	lastResult    Result
}

// Result summarizes one scan.
type Result struct {
	Files    int64         `json:"files"`
	Folders  int64         `json:"folders"`
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Removed  int64         `json:"removed"`
	Failed   int           `json:"failedBatches"`
	Duration time.Duration `json:"duration"`
}

var _ tasks.Task = (*Indexer)(nil)

// New creates an Indexer. An interval of zero disables periodic scans.
func New(store Store, mediaDir string, interval time.Duration) *Indexer {
	return &Indexer{
		store:    store,
		mediaDir: filepath.Clean(mediaDir),
		interval: interval,
		config:   DefaultParallelWalkerConfig(),
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.config = config
}

func (idx *Indexer) Name() string { return "Scan Media Library" }

func (idx *Indexer) Key() string { return "LibraryScan" }

func (idx *Indexer) Description() string {
	return "Scans the media directory, adds new files and folders to the catalog and removes entries whose files are gone."
}

func (idx *Indexer) Category() string { return "Library" }

// DefaultTriggers scans once at startup and then every interval.
func (idx *Indexer) DefaultTriggers() []tasks.Trigger {
	triggers := []tasks.Trigger{{Type: tasks.TriggerStartup}}
	if idx.interval > 0 {
		triggers = append(triggers, tasks.Trigger{Type: tasks.TriggerInterval, Interval: idx.interval})
	}
	return triggers
}

// Execute runs a scan for the task manager.
func (idx *Indexer) Execute(ctx context.Context, progress tasks.Progress) error {
	_, err := idx.Index(ctx, progress)
	return err
}

// Index performs a full scan of the media directory. Items are written
// parents first so every ItemAdded event refers to an item whose parent is
// already in the catalog. Entries not seen by a completed scan are removed.
func (idx *Indexer) Index(ctx context.Context, progress tasks.Progress) (Result, error) {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return Result{}, ErrAlreadyIndexing
	}
	defer idx.finishIndexing()

	if progress == nil {
		progress = tasks.Discard
	}

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting library scan of %s...", idx.mediaDir)

	walker := NewParallelWalker(idx.mediaDir, idx.config)
	items, err := walker.Walk(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("walk %s: %w", idx.mediaDir, err)
	}

	sortParentsFirst(items)

	var result Result
	result.Files, result.Folders, _ = walker.Stats()

	batchSize := idx.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	total := len(items)
	for i := 0; i < total; i += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := i + batchSize
		if end > total {
			end = total
		}
		batch := items[i:end]

		added, updated, err := idx.store.UpsertBatch(ctx, batch)
		if err != nil {
			result.Failed++
			metrics.IndexerErrors.Inc()
			logging.Error("Error processing batch: %v", err)
			continue
		}
		result.Added += added
		result.Updated += updated

		for _, item := range batch {
			metrics.IndexerItemsProcessed.WithLabelValues(string(item.Kind)).Inc()
		}

		progress.Report(float64(end) / float64(total) * 100)
		if (i/batchSize)%10 == 9 || end == total {
			logging.Info("Catalog update progress: %d/%d items", end, total)
		}
	}

	// Items in failed batches were not marked as seen; keep everything
	if result.Failed == 0 {
		removed, err := idx.store.DeleteMissing(ctx, startTime)
		if err != nil {
			logging.Error("Error cleaning up missing files: %v", err)
			metrics.IndexerErrors.Inc()
		} else if removed > 0 {
			logging.Info("Removed %d missing items from catalog", removed)
		}
		result.Removed = removed
	} else {
		logging.Warn("Skipping cleanup of missing files: %d batches failed", result.Failed)
	}

	result.Duration = time.Since(startTime)
	idx.finalizeIndex(result)
	progress.Report(100)
	return result, nil
}

// sortParentsFirst orders items by depth, then path.
func sortParentsFirst(items []*catalog.Item) {
	sort.Slice(items, func(i, j int) bool {
		di, dj := strings.Count(items[i].Path, string(filepath.Separator)), strings.Count(items[j].Path, string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return items[i].Path < items[j].Path
	})
}

// newItem builds the catalog entry for path. Items directly under root have
// no parent. Unsupported files return false.
func newItem(root, path string, isDir bool) (*catalog.Item, bool) {
	name := filepath.Base(path)

	var kind catalog.Kind
	if isDir {
		kind = catalog.KindFolder
	} else {
		fileType, episode := mediatypes.Classify(name)
		switch {
		case fileType == mediatypes.FileTypeVideo && episode:
			kind = catalog.KindEpisode
		case fileType == mediatypes.FileTypeVideo:
			kind = catalog.KindMovie
		case fileType == mediatypes.FileTypeAudio:
			kind = catalog.KindAudio
		default:
			return nil, false
		}
	}

	var parentID uuid.UUID
	if dir := filepath.Dir(path); dir != root {
		parentID = catalog.PathID(dir)
	}

	return &catalog.Item{
		ID:       catalog.PathID(path),
		Name:     name,
		Kind:     kind,
		Path:     path,
		ParentID: parentID,
	}, true
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

// finishIndexing marks indexing as complete.
func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
}

// finalizeIndex records the completed scan.
func (idx *Indexer) finalizeIndex(result Result) {
	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.lastResult = result
	idx.indexMu.Unlock()

	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())

	logging.Info("Index complete: %d files, %d folders in %v (added %d, updated %d, removed %d)",
		result.Files, result.Folders, result.Duration, result.Added, result.Updated, result.Removed)
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// LastResult returns the summary of the last completed scan.
func (idx *Indexer) LastResult() Result {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastResult
}
