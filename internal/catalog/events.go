package catalog

import (
	"sync"

	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
)

// EventType identifies a change notification.
type EventType int

const (
	ItemAdded EventType = iota + 1
	ItemUpdated
)

func (e EventType) String() string {
	switch e {
	case ItemAdded:
		return "added"
	case ItemUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a change has been committed.
// Item is a private copy per delivery.
type Event struct {
	Type       EventType
	Item       *Item
	UpdateKind UpdateKind
}

// Handler receives change notifications. Handlers run synchronously on the
// goroutine that made the change, so they must not block for long.
type Handler func(Event)

// hub fans events out to subscribers.
type hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

func newHub() *hub {
	return &hub{subs: make(map[int]Handler)}
}

func (h *hub) subscribe(handler Handler) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// emit delivers evt to every subscriber. A panicking subscriber is logged and
// does not prevent delivery to the others.
func (h *hub) emit(evt Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs))
	for _, handler := range h.subs {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		delivered := evt
		delivered.Item = evt.Item.Clone()
		deliver(handler, delivered)
	}
	if len(handlers) > 0 {
		metrics.CatalogEventsEmitted.WithLabelValues(evt.Type.String()).Add(float64(len(handlers)))
	}
}

func deliver(handler Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CatalogSubscriberPanics.Inc()
			name := "<nil>"
			if evt.Item != nil {
				name = evt.Item.ID.String()
			}
			logging.Error("catalog subscriber panicked on %s event for %s: %v", evt.Type, name, r)
		}
	}()
	handler(evt)
}
