package filesystem

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
)

const unknownVolume = "unknown"

// VolumeResolver names the volume a path lives on, for metric labels. The
// longest matching mount wins.
type VolumeResolver struct {
	mounts []volumeMount // longest prefix first
}

type volumeMount struct {
	prefix string // absolute, with trailing separator
	name   string
}

// NewVolumeResolver creates a resolver from volume name to mount path.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		mounts = append(mounts, volumeMount{prefix: withSeparator(absOrSelf(path)), name: name})
	}
	slices.SortFunc(mounts, func(a, b volumeMount) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})
	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume holding path, or "unknown". A nil resolver
// resolves everything to "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	abs = withSeparator(abs)
	for _, m := range vr.mounts {
		if strings.HasPrefix(abs, m.prefix) {
			return m.name
		}
	}
	return unknownVolume
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func withSeparator(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
