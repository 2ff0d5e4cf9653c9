package filesystem

import (
	"errors"
	"io/fs"
	"syscall"
	"time"

	"datecreated-fixer/internal/logging"
)

// RetryConfig configures retries of stat calls that hit a stale NFS handle.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels metrics. Nil labels everything "unknown".
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig retries three times, backing off from 50ms to 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// backoff returns the delay before retry n (0-based).
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < n && d < c.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, c.MaxBackoff)
}

// isNFSStaleError reports whether err carries ESTALE.
func isNFSStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// statFunc is os.Stat, swappable in tests.
type statFunc func(path string) (fs.FileInfo, error)

// statWithRetry calls stat, retrying only on ESTALE. Not-exist and every
// other error are returned at once.
func statWithRetry(stat statFunc, path, volume string, config RetryConfig, obs Observer) (fs.FileInfo, error) {
	for attempt := 0; ; attempt++ {
		info, err := stat(path)
		switch {
		case err == nil:
			if attempt > 0 {
				logging.Info("Stat of %s succeeded after %d retries", path, attempt)
				obs.ObserveRetrySuccess(volume)
			}
			return info, nil
		case !isNFSStaleError(err):
			return nil, err
		}

		obs.ObserveStaleError(volume)
		if attempt >= config.MaxRetries {
			logging.Warn("Stat of %s still stale after %d retries: %v", path, config.MaxRetries, err)
			obs.ObserveRetryFailure(volume)
			return nil, err
		}

		delay := config.backoff(attempt)
		obs.ObserveRetryAttempt(volume)
		logging.Debug("Stale file handle for %s, retry %d/%d in %v", path, attempt+1, config.MaxRetries, delay)
		time.Sleep(delay)
	}
}
