package indexer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
	"datecreated-fixer/internal/workers"

	"golang.org/x/sync/errgroup"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of goroutines classifying paths
	NumWorkers int
	// BatchSize is the number of items sent to the catalog per transaction
	BatchSize int
	// ChannelBuffer is the number of paths queued ahead of the workers
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig uses 3 workers, which NFS servers tolerate.
// INDEX_WORKERS overrides it.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.Fixed("INDEX_WORKERS", 3),
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

type walkJob struct {
	path  string
	isDir bool
}

// ParallelWalker walks a directory tree on one goroutine and classifies the
// entries on a pool of workers.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string

	files   atomic.Int64
	folders atomic.Int64
	errors  atomic.Int64
}

// NewParallelWalker creates a walker rooted at mediaDir.
func NewParallelWalker(mediaDir string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if config.ChannelBuffer < 0 {
		config.ChannelBuffer = 0
	}
	return &ParallelWalker{config: config, root: filepath.Clean(mediaDir)}
}

// Walk returns the folders and media files under the root. Unreadable
// subtrees are logged and skipped; an unreadable root is an error. When ctx
// is canceled the items found so far are returned with ctx's error.
func (pw *ParallelWalker) Walk(ctx context.Context) ([]*catalog.Item, error) {
	logging.Info("Starting parallel directory walk with %d workers", pw.config.NumWorkers)
	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))
	start := time.Now()

	var (
		mu    sync.Mutex
		items []*catalog.Item
	)
	jobs := make(chan walkJob, pw.config.ChannelBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		return pw.enqueue(gctx, jobs)
	})

	for i := 0; i < pw.config.NumWorkers; i++ {
		g.Go(func() error {
			var local []*catalog.Item
			for job := range jobs {
				if item, ok := pw.classify(job); ok {
					local = append(local, item)
				}
			}
			mu.Lock()
			items = append(items, local...)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	logging.Info("Parallel walk complete: %d files, %d folders in %v (errors: %d)",
		pw.files.Load(), pw.folders.Load(), time.Since(start), pw.errors.Load())

	if err == nil {
		err = ctx.Err()
	}
	return items, err
}

// enqueue walks the tree and feeds jobs until the walk ends or ctx is done.
func (pw *ParallelWalker) enqueue(ctx context.Context, jobs chan<- walkJob) error {
	err := filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == pw.root {
				return err
			}
			pw.errors.Add(1)
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if path == pw.root {
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case jobs <- walkJob{path: path, isDir: d.IsDir()}:
			return nil
		case <-ctx.Done():
			return fs.SkipAll
		}
	})
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (pw *ParallelWalker) classify(job walkJob) (*catalog.Item, bool) {
	item, ok := newItem(pw.root, job.path, job.isDir)
	if !ok {
		return nil, false
	}
	if job.isDir {
		pw.folders.Add(1)
	} else {
		pw.files.Add(1)
	}
	return item, true
}

// Stats returns the counts of the last walk.
func (pw *ParallelWalker) Stats() (files, folders, failed int64) {
	return pw.files.Load(), pw.folders.Load(), pw.errors.Load()
}
