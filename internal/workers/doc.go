/*
Package workers sizes worker pools in containerized environments.

When running in a container the number of usable CPUs may be limited by
cgroup constraints. runtime.NumCPU() still reports the host's CPUs, while
GOMAXPROCS (Go 1.19+) follows the container limit:

	// Wrong: Returns 64 (host CPUs), ignores container limit
	workers := runtime.NumCPU()

	// Correct: Returns 2 (respects container limit in Go 1.19+)
	workers := runtime.GOMAXPROCS(0)

# Usage

	// I/O-bound work (file stats, catalog writes): 2 per CPU, at most 64
	n := workers.ForIO(64)

	// A fixed pool that ignores CPUs, overridable per pool
	n := workers.Fixed("INDEX_WORKERS", 3)

The batch date fixer uses ForIO when BATCH_CONCURRENCY is set to 0. The
library scan walks with Fixed so NFS servers are not flooded.

# Environment Variable Override

Set FIXER_WORKERS to pin the count regardless of CPU availability. The
override is still capped by the limit argument; invalid, zero or negative
values are ignored.

	FIXER_WORKERS=8 ./datecreated-fixer
*/
package workers
