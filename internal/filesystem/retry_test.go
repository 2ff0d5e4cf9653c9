package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

// recordingObserver counts observer calls.
type recordingObserver struct {
	mu       sync.Mutex
	results  []string
	attempts int
	success  int
	failures int
	stale    int
}

func (r *recordingObserver) ObserveProbe(_ string, _ float64, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingObserver) ObserveRetryAttempt(string) { r.mu.Lock(); r.attempts++; r.mu.Unlock() }
func (r *recordingObserver) ObserveRetrySuccess(string) { r.mu.Lock(); r.success++; r.mu.Unlock() }
func (r *recordingObserver) ObserveRetryFailure(string) { r.mu.Lock(); r.failures++; r.mu.Unlock() }
func (r *recordingObserver) ObserveStaleError(string)   { r.mu.Lock(); r.stale++; r.mu.Unlock() }

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &fs.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":  "/media",
		"movies": "/media/movies",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "media root", path: "/media", want: "media"},
		{name: "media file", path: "/media/tv/show.mkv", want: "media"},
		{name: "longest prefix wins", path: "/media/movies/a.mkv", want: "movies"},
		{name: "prefix of a name is not a match", path: "/mediaextra/a.mkv", want: "unknown"},
		{name: "outside any volume", path: "/tmp/a.mkv", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/media/a.mkv"); got != "unknown" {
		t.Errorf("nil resolver Resolve = %q, want unknown", got)
	}
}

func TestStatWithRetry_RecoversFromStale(t *testing.T) {
	obs := &recordingObserver{}
	dir := t.TempDir()

	calls := 0
	stat := func(path string) (fs.FileInfo, error) {
		calls++
		if calls < 3 {
			return nil, &fs.PathError{Op: "stat", Path: path, Err: syscall.ESTALE}
		}
		return os.Stat(path)
	}

	info, err := statWithRetry(stat, dir, "media", fastRetryConfig(), obs)
	if err != nil {
		t.Fatalf("statWithRetry() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory info")
	}
	if calls != 3 {
		t.Errorf("stat calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 || obs.failures != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestStatWithRetry_GivesUp(t *testing.T) {
	obs := &recordingObserver{}
	calls := 0
	stat := func(path string) (fs.FileInfo, error) {
		calls++
		return nil, syscall.ESTALE
	}

	_, err := statWithRetry(stat, "/media/x", "media", fastRetryConfig(), obs)
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("stat calls = %d, want 4 (1 + 3 retries)", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestStatWithRetry_NoRetryForOtherErrors(t *testing.T) {
	calls := 0
	stat := func(path string) (fs.FileInfo, error) {
		calls++
		return nil, fs.ErrPermission
	}

	_, err := statWithRetry(stat, "/media/x", "media", fastRetryConfig(), noopObserver{})
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("error = %v, want permission error", err)
	}
	if calls != 1 {
		t.Errorf("stat calls = %d, want 1", calls)
	}
}

func TestProbeStat(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	dir := t.TempDir()
	file := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)
	if err := os.Chtimes(file, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	probe := NewProbe(fastRetryConfig())

	state, err := probe.Stat(file)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !state.Exists {
		t.Error("Exists = false, want true")
	}
	if !state.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", state.ModTime, mtime)
	}
	if state.ModTime.Location() != time.UTC {
		t.Errorf("ModTime location = %v, want UTC", state.ModTime.Location())
	}

	missing, err := probe.Stat(filepath.Join(dir, "missing.mkv"))
	if err != nil {
		t.Fatalf("Stat(missing) error = %v", err)
	}
	if missing.Exists || !missing.ModTime.IsZero() {
		t.Errorf("missing state = %+v, want zero", missing)
	}

	if len(obs.results) != 2 || obs.results[0] != "found" || obs.results[1] != "missing" {
		t.Errorf("probe results = %v, want [found missing]", obs.results)
	}
}

func TestProbeStat_Error(t *testing.T) {
	probe := NewProbe(fastRetryConfig())
	probe.stat = func(string) (fs.FileInfo, error) { return nil, fs.ErrPermission }

	_, err := probe.Stat("/media/locked.mkv")
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("error = %v, want wrapped permission error", err)
	}
}

func TestRetryConfigBackoff(t *testing.T) {
	config := RetryConfig{InitialBackoff: 50 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for n, w := range want {
		if got := config.backoff(n); got != w {
			t.Errorf("backoff(%d) = %v, want %v", n, got, w)
		}
	}
}
