package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
)

// defaultDebounce is how long a path must be quiet before it is recorded.
const defaultDebounce = 2 * time.Second

// Upserter records discovered items.
type Upserter interface {
	UpsertBatch(ctx context.Context, items []*catalog.Item) (added, updated int, err error)
}

// Watcher adds media files to the catalog as they appear on disk, so the
// date fixer sees them without waiting for the next full scan. Removals are
// left to the periodic scan.
type Watcher struct {
	store    Upserter
	mediaDir string
	debounce time.Duration

	pending map[string]time.Time
}

// NewWatcher creates a Watcher for mediaDir.
func NewWatcher(store Upserter, mediaDir string) *Watcher {
	return &Watcher{
		store:    store,
		mediaDir: filepath.Clean(mediaDir),
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
	}
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	watchCount := w.addDirectories(watcher, w.mediaDir)
	logging.Info("File watcher started, watching %d directories", watchCount)
	metrics.WatchedDirectories.Set(float64(watchCount))

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("File watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// addDirectories watches root and every non-hidden directory below it.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher, root string) int {
	watchCount := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			watchCount++
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}
	return watchCount
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	// Skip hidden files
	if strings.Contains(event.Name, string(filepath.Separator)+".") {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			added := w.addDirectories(watcher, event.Name)
			metrics.WatchedDirectories.Add(float64(added))
			logging.Debug("Watching new directory %s", event.Name)
		}
	}

	w.pending[event.Name] = time.Now()
}

// flush records paths that have been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var items []*catalog.Item
	seen := make(map[string]bool)

	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		item, ok := newItem(w.mediaDir, path, info.IsDir())
		if !ok {
			continue
		}
		for _, ancestor := range w.ancestors(path) {
			if !seen[ancestor.Path] {
				seen[ancestor.Path] = true
				items = append(items, ancestor)
			}
		}
		if !seen[item.Path] {
			seen[item.Path] = true
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return
	}

	sortParentsFirst(items)
	added, updated, err := w.store.UpsertBatch(ctx, items)
	if err != nil {
		logging.Error("Failed to record watched changes: %v", err)
		metrics.WatcherErrors.Inc()
		return
	}
	if added > 0 || updated > 0 {
		logging.Info("Watcher recorded %d new and %d changed items", added, updated)
	}
}

// ancestors returns folder items from the top of the library down to the
// directory containing path.
func (w *Watcher) ancestors(path string) []*catalog.Item {
	var chain []*catalog.Item
	for dir := filepath.Dir(path); dir != w.mediaDir && strings.HasPrefix(dir, w.mediaDir); dir = filepath.Dir(dir) {
		if folder, ok := newItem(w.mediaDir, dir, true); ok {
			chain = append([]*catalog.Item{folder}, chain...)
		}
	}
	return chain
}

// eventType returns a label for the fsnotify operation
func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
