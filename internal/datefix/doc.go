// Package datefix repairs media items whose DateCreated holds the
// 2000-01-01 sentinel (or anything earlier) by replacing it with the backing
// file's modification time.
//
// Two entry points share one Corrector:
//
//   - Service listens to catalog change notifications and fixes items as
//     they arrive. A Guard keyed by item ID keeps the service from reacting
//     to the ItemUpdated event its own save produces.
//   - Task sweeps the whole catalog on demand with a bounded number of
//     corrections in flight, reporting progress and honoring cancellation.
//
// A file time is only accepted if it is after the sentinel and not in the
// future. Clock skew between this process and the file server is not
// compensated for.
package datefix
