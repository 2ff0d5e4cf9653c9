package filesystem

// Observer records file probe metrics. Implementations are provided
// by the metrics package to break the import cycle between filesystem and metrics.
type Observer interface {
	// ObserveProbe records the total duration of a probe including retries.
	// result is one of "found", "missing", "error".
	ObserveProbe(volume string, durationSeconds float64, result string)

	// Retry-specific metrics for NFS resilience.
	ObserveRetryAttempt(volume string)
	ObserveRetrySuccess(volume string)
	ObserveRetryFailure(volume string)
	ObserveStaleError(volume string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

// noopObserver is used when no observer has been configured.
type noopObserver struct{}

func (noopObserver) ObserveProbe(string, float64, string) {}
func (noopObserver) ObserveRetryAttempt(string)           {}
func (noopObserver) ObserveRetrySuccess(string)           {}
func (noopObserver) ObserveRetryFailure(string)           {}
func (noopObserver) ObserveStaleError(string)             {}

// observe is a nil-safe helper for the package-level observer.
func observe() Observer {
	if defaultObserver == nil {
		return noopObserver{}
	}
	return defaultObserver
}
