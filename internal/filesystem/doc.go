/*
Package filesystem provides the file probe that reads a media item's backing
file, with automatic retry for NFS stale file handle errors.

# Purpose

The date-created fixer treats a file's last-modification time as ground
truth. Probe.Stat reads existence and modification time in a single stat so
the caller never sees the two disagree:

	probe := filesystem.NewProbe(filesystem.DefaultRetryConfig())
	state, err := probe.Stat("/media/movies/a.mkv")
	if err != nil {
	    // permission denied, I/O error, ...
	}
	if !state.Exists {
	    // skip: file missing
	}

A missing file is not an error. Only ESTALE (errno 116) triggers retries;
every other error is returned immediately.

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

# Metrics

Probe durations, results and retries are reported through Observer, which
the metrics package implements. Set it once at startup with SetObserver.
Labels come from the VolumeResolver in RetryConfig.
*/
package filesystem
