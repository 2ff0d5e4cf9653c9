package datefix

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Guard tracks items with a correction in flight. The zero value is ready
// to use and safe for concurrent callers.
type Guard struct {
	inFlight sync.Map // uuid.UUID -> struct{}
	size     atomic.Int64
}

// TryEnter reserves id. It returns false if id is already reserved.
func (g *Guard) TryEnter(id uuid.UUID) bool {
	if _, loaded := g.inFlight.LoadOrStore(id, struct{}{}); loaded {
		return false
	}
	g.size.Add(1)
	return true
}

// Leave releases id. Releasing an id that is not reserved is a no-op.
func (g *Guard) Leave(id uuid.UUID) {
	if _, ok := g.inFlight.LoadAndDelete(id); ok {
		g.size.Add(-1)
	}
}

// Len returns the number of reserved ids.
func (g *Guard) Len() int {
	return int(g.size.Load())
}
