package datefix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
)

// ErrAlreadyStarted is returned by Start on a running Service.
var ErrAlreadyStarted = errors.New("datefix: service already started")

// Subscriber delivers catalog change notifications.
type Subscriber interface {
	Subscribe(handler catalog.Handler) (unsubscribe func())
}

// Service corrects items as the catalog reports them added or updated.
//
// The event handler runs on the catalog's delivering goroutine: it rejects
// items cheaply, reserves the item in a Guard, probes the file and, when a
// fix is due, updates DateCreated in memory before saving it on a separate
// goroutine. The reservation is held until the save returns, so the
// ItemUpdated event the save itself produces is ignored.
type Service struct {
	source    Subscriber
	corrector *Corrector
	guard     Guard
	log       logging.Logger

	mu          sync.RWMutex
	unsubscribe func()
	stopping    bool
	ctx         context.Context
	cancel      context.CancelFunc
	pending     sync.WaitGroup
}

// NewService creates a Service listening on source.
func NewService(source Subscriber, corrector *Corrector) *Service {
	return &Service{
		source:    source,
		corrector: corrector,
		log:       logging.Named("DateCreatedFixer"),
	}
}

// Start subscribes to catalog events. Saves dispatched by the service keep
// ctx's values but not its cancellation; use Stop to end them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.stopping = false

	s.log.Info("Subscribing to library events")
	s.unsubscribe = s.source.Subscribe(s.handle)
	metrics.ReactiveRunning.Set(1)
	return nil
}

// Stop unsubscribes and waits for dispatched saves to finish. If ctx ends
// first, the remaining saves are canceled and ctx's error is returned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.mu.Unlock()
		return nil
	}
	s.log.Info("Unsubscribing from library events")
	s.unsubscribe()
	s.unsubscribe = nil
	s.stopping = true
	cancel := s.cancel
	s.mu.Unlock()

	metrics.ReactiveRunning.Set(0)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Abandoning %d in-flight saves: %v", s.guard.Len(), ctx.Err())
		return fmt.Errorf("draining reactive saves: %w", ctx.Err())
	}
}

// InFlight returns the number of items currently reserved by the service.
func (s *Service) InFlight() int {
	return s.guard.Len()
}

func (s *Service) handle(evt catalog.Event) {
	metrics.ReactiveEventsTotal.WithLabelValues(evt.Type.String()).Inc()

	item := evt.Item
	if item == nil || !IsBad(item.DateCreated) || item.Path == "" {
		return
	}

	if !s.guard.TryEnter(item.ID) {
		metrics.ReactiveGuardRejections.Inc()
		s.log.Debug("Skipping %s: correction already in flight", item.Name)
		return
	}

	decision, err := s.corrector.Evaluate(item)
	if err != nil {
		s.guard.Leave(item.ID)
		recordOutcome("reactive", Outcome{Kind: Failed, Err: err})
		s.log.Error("Error processing %s: %v", item.Name, err)
		return
	}
	if !decision.ShouldFix {
		s.guard.Leave(item.ID)
		recordOutcome("reactive", Outcome{Kind: Skipped, Reason: decision.Reason})
		s.log.Debug("Skipping %s: %s", item.Name, decision.Reason)
		return
	}

	s.mu.RLock()
	if s.stopping {
		s.mu.RUnlock()
		s.guard.Leave(item.ID)
		return
	}
	s.pending.Add(1)
	ctx := s.ctx
	s.mu.RUnlock()

	s.log.Info("Fixing %s DateCreated from %s to %s",
		item.Name, item.DateCreated.Format(time.RFC3339), decision.NewTimestamp.Format(time.RFC3339))
	item.DateCreated = decision.NewTimestamp

	metrics.ReactiveUpdatesInFlight.Inc()
	go func() {
		defer s.pending.Done()
		defer metrics.ReactiveUpdatesInFlight.Dec()
		defer s.guard.Leave(item.ID)

		if err := s.corrector.Persist(ctx, item); err != nil {
			recordOutcome("reactive", Outcome{Kind: Failed, Err: err})
			s.log.Error("Failed to save %s: %v", item.Name, err)
			return
		}
		recordOutcome("reactive", Outcome{Kind: Fixed, NewTimestamp: item.DateCreated})
	}()
}
