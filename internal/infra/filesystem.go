package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// EnsureDir creates the directory (and parents) if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// IsWritableDir probes whether dir accepts writes by creating and removing
// a marker file. A stat-based permission check misses read-only mounts,
// which is exactly the case removable media hits.
func IsWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	marker := filepath.Join(dir, ".seccam-probe")
	f, err := os.Create(marker)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(marker)
	return true
}
