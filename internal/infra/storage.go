package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

const recordingsSubdir = "security_recordings"

// RemovableStorageResolver picks the artifact destination: the first
// writable removable mount under the configured roots, else the local
// fallback directory. Resolved per artifact so a drive plugged in after
// startup takes effect without a restart.
type RemovableStorageResolver struct {
	roots    []string
	localDir string
	logger   *zap.Logger

	partitions func(all bool) ([]disk.PartitionStat, error)
}

// NewRemovableStorageResolver creates a resolver scanning the given mount
// roots, falling back to localDir.
func NewRemovableStorageResolver(roots []string, localDir string, logger *zap.Logger) *RemovableStorageResolver {
	return &RemovableStorageResolver{
		roots:      roots,
		localDir:   ExpandHome(localDir),
		logger:     logger,
		partitions: disk.Partitions,
	}
}

// Resolve returns a writable destination directory ending in
// security_recordings, created on demand. Failure to create even the
// local fallback is the caller's fatal condition.
func (r *RemovableStorageResolver) Resolve() (string, error) {
	for _, mount := range r.candidates() {
		if !IsWritableDir(mount) {
			continue
		}
		dest := filepath.Join(mount, recordingsSubdir)
		if err := EnsureDir(dest); err != nil {
			r.logger.Warn("removable mount rejected", zap.String("mount", mount), zap.Error(err))
			continue
		}
		if !IsWritableDir(dest) {
			continue
		}
		return dest, nil
	}

	dest := filepath.Join(r.localDir, recordingsSubdir)
	if err := EnsureDir(dest); err != nil {
		return "", fmt.Errorf("no writable destination: %w", err)
	}
	return dest, nil
}

// candidates lists mount points under the roots, preferring the partition
// table and supplementing with a direct directory scan (bind mounts and
// some USB automounters never show up in the partition list).
func (r *RemovableStorageResolver) candidates() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	parts, err := r.partitions(false)
	if err != nil {
		r.logger.Debug("partition scan failed", zap.Error(err))
	} else {
		for _, p := range parts {
			for _, root := range r.roots {
				if strings.HasPrefix(p.Mountpoint, root+string(os.PathSeparator)) {
					add(p.Mountpoint)
				}
			}
		}
	}

	for _, root := range r.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				add(filepath.Join(root, e.Name()))
			}
		}
	}
	return out
}

var _ domain.StorageResolver = (*RemovableStorageResolver)(nil)
