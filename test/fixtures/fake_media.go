// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
)

// FakeMediaTree creates a directory structure mimicking the mount roots a
// Raspberry Pi exposes for removable media.
type FakeMediaTree struct {
	Root string // acts as the configured storage root, e.g. /media/pi
}

// NewFakeMediaTree creates a fake media tree generator under root.
func NewFakeMediaTree(root string) *FakeMediaTree {
	return &FakeMediaTree{Root: root}
}

// AddWritableDrive creates a writable fake USB mount and returns its path.
func (f *FakeMediaTree) AddWritableDrive(name string) (string, error) {
	mount := filepath.Join(f.Root, name)
	if err := os.MkdirAll(mount, 0755); err != nil {
		return "", err
	}
	return mount, nil
}

// AddReadOnlyDrive creates a fake mount that rejects writes.
func (f *FakeMediaTree) AddReadOnlyDrive(name string) (string, error) {
	mount := filepath.Join(f.Root, name)
	if err := os.MkdirAll(mount, 0555); err != nil {
		return "", err
	}
	// MkdirAll applies umask; force the mode
	if err := os.Chmod(mount, 0555); err != nil {
		return "", err
	}
	return mount, nil
}

// Recordings lists the recording files under a mount's destination
// directory, in name order.
func (f *FakeMediaTree) Recordings(mount string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(mount, "security_recordings", "security_*.mp4"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
