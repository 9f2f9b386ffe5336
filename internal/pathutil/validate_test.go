package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCheckWithin(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	presets := filepath.Join(allowed, "presets")
	if err := os.MkdirAll(presets, 0700); err != nil {
		t.Fatalf("failed to create presets dir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		roots       []string
		errContains string
	}{
		{"file in root", filepath.Join(allowed, "user_custom.yaml"), []string{allowed}, ""},
		{"file in subdirectory", filepath.Join(presets, "presets.db"), []string{allowed}, ""},
		{"root itself", allowed, []string{allowed}, ""},
		{"missing subdirectories", filepath.Join(allowed, "a", "b", "c.yaml"), []string{allowed}, ""},
		{"second root", filepath.Join(other, "x"), []string{allowed, other}, ""},
		{"dot-dot escape", filepath.Join(allowed, "..", "etc", "passwd"), []string{allowed}, "outside allowed directories"},
		{"nested dot-dot escape", filepath.Join(presets, "..", "..", "x"), []string{allowed}, "outside allowed directories"},
		{"other directory", filepath.Join(other, "x"), []string{allowed}, "outside allowed directories"},
		{"sibling with shared prefix", allowed + "-evil", []string{allowed}, "outside allowed directories"},
		{"null byte", filepath.Join(allowed, "a\x00b"), []string{allowed}, "null byte"},
		{"empty path", "", []string{allowed}, "empty"},
		{"no roots", filepath.Join(allowed, "x"), nil, "no allowed directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWithin(tt.path, tt.roots)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("CheckWithin() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("CheckWithin() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestCheckWithin_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	allowed := t.TempDir()
	outside := t.TempDir()

	escape := filepath.Join(allowed, "escape")
	if err := os.Symlink(outside, escape); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := CheckWithin(filepath.Join(escape, "presets.db"), []string{allowed}); err == nil {
		t.Error("symlink pointing outside should be rejected")
	}

	realDir := filepath.Join(allowed, "real")
	if err := os.MkdirAll(realDir, 0700); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(allowed, "link")
	if err := os.Symlink(realDir, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := CheckWithin(filepath.Join(link, "presets.db"), []string{allowed}); err != nil {
		t.Errorf("symlink staying inside should be accepted, got %v", err)
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/home/user/.grag/config.yaml", ".../.grag/config.yaml"},
		{"/a/b/c/d/e.txt", ".../d/e.txt"},
		{"/file.txt", "file.txt"},
		{"dir/file.txt", ".../dir/file.txt"},
		{"file.txt", "file.txt"},
		{"/home/user/.grag/", ".../user/.grag"},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGragDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	dirs, err := GragDirs(root)
	if err != nil {
		t.Fatalf("GragDirs() error = %v", err)
	}
	want := []string{filepath.Join(home, ".grag"), filepath.Join(root, ".grag")}
	if len(dirs) != len(want) {
		t.Fatalf("dirs = %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, dirs[i], want[i])
		}
	}

	dirs, _ = GragDirs("")
	if len(dirs) != 1 {
		t.Errorf("GragDirs(\"\") = %v, want only the home directory", dirs)
	}
}
