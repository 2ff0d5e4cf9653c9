package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that pins every pool sized
// through Count.
const OverrideEnv = "FIXER_WORKERS"

// Multipliers for Count.
const (
	CPUBound = 1.0
	IOBound  = 2.0
)

// Count sizes a worker pool from GOMAXPROCS, which follows container CPU
// limits. The result is at least 1 and at most limit when limit > 0.
// FIXER_WORKERS overrides the computed size but not the limit.
func Count(multiplier float64, limit int) int {
	n, ok := FromEnv(OverrideEnv)
	if !ok {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	return clamp(n, limit)
}

// ForIO sizes a pool for I/O-bound work such as stat-and-save corrections
// against network storage.
func ForIO(limit int) int {
	return Count(IOBound, limit)
}

// ForCPU sizes a pool for CPU-bound work.
func ForCPU(limit int) int {
	return Count(CPUBound, limit)
}

// FromEnv reads a positive worker count from the named variable.
func FromEnv(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Fixed returns the count from the named variable, or def when it is unset
// or invalid. Pools that must not scale with CPUs, like walks over NFS,
// use it instead of Count.
func Fixed(name string, def int) int {
	if n, ok := FromEnv(name); ok {
		return n
	}
	return clamp(def, 0)
}

func clamp(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
