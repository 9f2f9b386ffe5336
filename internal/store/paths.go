package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalGragPath returns the path to the global .grag directory.
// On Unix: ~/.grag
// On Windows: %USERPROFILE%\.grag
func GlobalGragPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".grag"), nil
}

// LocalGragPath returns the path to the local .grag directory
// for the given project root.
func LocalGragPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".grag")
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
