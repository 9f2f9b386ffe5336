package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/grag/internal/models"
)

// UserPresetsFile is the file user presets are saved to.
const UserPresetsFile = "user_custom.yaml"

// catalogVersion is written to user_custom.yaml metadata.
const catalogVersion = "3.0.0"

// FilePresetStore implements PresetStore with the embedded catalog as
// read-only built-ins and user presets persisted to dir/user_custom.yaml.
// Thread-safe for concurrent access.
type FilePresetStore struct {
	mu       sync.RWMutex
	dir      string
	userFile string

	builtins map[string]models.Preset // keyed by Key
	user     map[string]models.Preset // keyed by Key

	// LoadErrors tracks user presets that were skipped while loading.
	LoadErrors []LoadError
}

// LoadError represents a preset that could not be loaded from disk.
type LoadError struct {
	File  string `json:"file"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// NewFilePresetStore creates a store rooted at dir, loading any existing
// user presets. dir is created if needed.
func NewFilePresetStore(dir string) (*FilePresetStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create preset directory: %w", err)
	}

	catalog, err := Catalog()
	if err != nil {
		return nil, err
	}

	s := &FilePresetStore{
		dir:        dir,
		userFile:   filepath.Join(dir, UserPresetsFile),
		builtins:   make(map[string]models.Preset, len(catalog)),
		user:       make(map[string]models.Preset),
		LoadErrors: make([]LoadError, 0),
	}
	for _, p := range catalog {
		s.builtins[p.Key] = p
	}

	if err := s.loadUser(); err != nil {
		return nil, fmt.Errorf("failed to load user presets: %w", err)
	}
	return s, nil
}

// loadUser reads user presets into memory, skipping invalid entries.
func (s *FilePresetStore) loadUser() error {
	data, err := os.ReadFile(s.userFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No file yet is fine
		}
		return err
	}

	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing %s: %w", s.userFile, err)
	}
	for key, p := range f.Presets {
		p.Key = key
		if err := p.Validate(); err != nil {
			s.LoadErrors = append(s.LoadErrors, LoadError{File: s.userFile, Key: key, Error: err.Error()})
			continue
		}
		if _, clash := s.builtins[key]; clash {
			s.LoadErrors = append(s.LoadErrors, LoadError{File: s.userFile, Key: key, Error: ErrReadOnly.Error()})
			continue
		}
		s.user[key] = p
	}
	return nil
}

// LoadAll returns built-in and user presets keyed by display name.
func (s *FilePresetStore) LoadAll(ctx context.Context) (map[string]models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Preset, len(s.builtins)+len(s.user))
	for _, p := range s.builtins {
		out[p.Name] = p
	}
	for _, p := range s.user {
		if _, taken := out[p.Name]; !taken {
			out[p.Name] = p
		}
	}
	return out, nil
}

// Get returns a preset by name or key. Built-ins win over user presets.
// Returns nil if not found.
func (s *FilePresetStore) Get(ctx context.Context, name string) (*models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range []map[string]models.Preset{s.builtins, s.user} {
		for _, p := range set {
			if match(p, name) {
				p := p
				return &p, nil
			}
		}
	}
	return nil, nil
}

// Save stores a user preset and rewrites user_custom.yaml.
func (s *FilePresetStore) Save(ctx context.Context, p models.Preset) error {
	p, err := prepare(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clashesWithBuiltin(s.builtins, p) {
		return fmt.Errorf("saving %s: %w", p.Name, ErrReadOnly)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	prev, existed := s.user[p.Key]
	s.user[p.Key] = p
	if err := s.writeUser(); err != nil {
		if existed {
			s.user[p.Key] = prev
		} else {
			delete(s.user, p.Key)
		}
		return err
	}
	return nil
}

// Delete removes a user preset and rewrites user_custom.yaml.
func (s *FilePresetStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.builtins {
		if match(p, name) {
			return fmt.Errorf("deleting %s: %w", p.Name, ErrReadOnly)
		}
	}
	for key, p := range s.user {
		if !match(p, name) {
			continue
		}
		delete(s.user, key)
		if err := s.writeUser(); err != nil {
			s.user[key] = p
			return err
		}
		return nil
	}
	return fmt.Errorf("deleting %s: %w", name, ErrNotFound)
}

// writeUser atomically replaces user_custom.yaml. Caller holds s.mu.
func (s *FilePresetStore) writeUser() error {
	f := presetFile{
		Presets: s.user,
		Metadata: &fileMetadata{
			Version:      catalogVersion,
			TotalPresets: len(s.user),
			LastUpdated:  time.Now().UTC().Format(time.RFC3339),
		},
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encoding user presets: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".user_custom-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing user presets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing user presets: %w", err)
	}
	if err := os.Rename(tmpName, s.userFile); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing user presets: %w", err)
	}
	return nil
}

// Close is a no-op; every mutation is written immediately.
func (s *FilePresetStore) Close() error {
	return nil
}
