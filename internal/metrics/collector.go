package metrics

import (
	"context"
	"sync"
	"time"

	"datecreated-fixer/internal/logging"
)

// StatsProvider supplies the catalog figures published as gauges.
type StatsProvider interface {
	CollectStats(ctx context.Context) (Stats, error)
}

// Stats holds the current catalog statistics
type Stats struct {
	ItemsByKind map[string]int
	BadDates    int
}

const collectTimeout = 30 * time.Second

// Collector refreshes the catalog gauges on an interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	mu    sync.Mutex
	kinds map[string]bool // labels published so far

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector creates a collector. It does nothing until Start.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		kinds:    make(map[string]bool),
	}
}

// Start collects once immediately and then every interval until Stop.
func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.collect(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels an in-progress collection and waits for the loop to exit.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) collect(ctx context.Context) {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	stats, err := c.provider.CollectStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	c.mu.Lock()
	// Kinds that vanished from the catalog drop to zero
	for kind := range c.kinds {
		if _, ok := stats.ItemsByKind[kind]; !ok {
			CatalogItemsTotal.WithLabelValues(kind).Set(0)
		}
	}
	for kind, count := range stats.ItemsByKind {
		CatalogItemsTotal.WithLabelValues(kind).Set(float64(count))
		c.kinds[kind] = true
	}
	c.mu.Unlock()

	CatalogBadDateItems.Set(float64(stats.BadDates))
	logging.Debug("Metrics collected: kinds=%d, bad dates=%d", len(stats.ItemsByKind), stats.BadDates)
}
