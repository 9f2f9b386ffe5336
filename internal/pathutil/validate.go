// Package pathutil checks where grag may write on behalf of an MCP client.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GragDir is the directory name grag uses under HOME and under a project.
const GragDir = ".grag"

// Redact shortens a path to .../<parent>/<base> for log and error output.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// CheckWithin returns nil when path, after cleaning and resolving symlinks
// on its existing ancestors, lies inside one of roots.
func CheckWithin(path string, roots []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path check failed: path is empty")
	case len(roots) == 0:
		return fmt.Errorf("path check failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path check failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path check failed: cannot resolve absolute path: %w", err)
	}
	// The leaf may not exist yet; resolve its directory instead.
	dir, err := resolve(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path check failed: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, root := range roots {
		rootAbs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			continue
		}
		rootResolved, err := resolve(rootAbs)
		if err != nil {
			continue
		}
		if under(resolved, rootResolved) {
			return nil
		}
	}
	return fmt.Errorf("path check failed: %q is outside allowed directories", Redact(abs))
}

// resolve evaluates symlinks on the deepest existing ancestor of dir and
// re-appends the missing tail.
func resolve(dir string) (string, error) {
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("cannot resolve path: %s", Redact(dir))
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

// under reports whether path equals base or lies below it.
func under(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

// GragDirs returns ~/.grag and, when projectRoot is set, <projectRoot>/.grag.
func GragDirs(projectRoot string) ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(home, GragDir)}
	if projectRoot != "" {
		dirs = append(dirs, filepath.Join(projectRoot, GragDir))
	}
	return dirs, nil
}
