package metrics

import "datecreated-fixer/internal/filesystem"

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records file probe metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveProbe(volume string, durationSeconds float64, result string) {
	FilesystemProbeDuration.WithLabelValues(volume).Observe(durationSeconds)
	FilesystemProbeResults.WithLabelValues(volume, result).Inc()
}

func (o *filesystemObserver) ObserveRetryAttempt(volume string) {
	FilesystemRetryAttempts.WithLabelValues(volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(volume string) {
	FilesystemRetrySuccess.WithLabelValues(volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(volume string) {
	FilesystemRetryFailures.WithLabelValues(volume).Inc()
}

func (o *filesystemObserver) ObserveStaleError(volume string) {
	FilesystemStaleErrors.WithLabelValues(volume).Inc()
}
