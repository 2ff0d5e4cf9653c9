package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// FileState is a single observation of a backing file. It is read once per
// evaluation so existence and modification time cannot disagree.
type FileState struct {
	Exists  bool
	ModTime time.Time // UTC; zero when Exists is false
}

// Probe reads file existence and last-modification time.
type Probe struct {
	config RetryConfig
	stat   statFunc
}

// NewProbe creates a Probe using the given retry configuration.
func NewProbe(config RetryConfig) *Probe {
	return &Probe{config: config, stat: os.Stat}
}

// Stat returns the state of the file at path. A missing file is reported as
// FileState{Exists: false} with a nil error; directories count as existing.
func (p *Probe) Stat(path string) (FileState, error) {
	start := time.Now()
	obs := observe()
	volume := p.config.VolumeResolver.Resolve(path)

	info, err := statWithRetry(p.stat, path, volume, p.config, obs)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		obs.ObserveProbe(volume, elapsed, "found")
		return FileState{Exists: true, ModTime: info.ModTime().UTC()}, nil
	case errors.Is(err, fs.ErrNotExist):
		obs.ObserveProbe(volume, elapsed, "missing")
		return FileState{}, nil
	default:
		obs.ObserveProbe(volume, elapsed, "error")
		return FileState{}, fmt.Errorf("stat %s: %w", path, err)
	}
}
