package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvandessel/grag/internal/models"
)

// InMemoryPresetStore implements PresetStore without persistence. It is the
// fallback when no storage backend is available, and the test double.
type InMemoryPresetStore struct {
	mu      sync.RWMutex
	presets map[string]models.Preset // keyed by Key
}

// NewInMemoryPresetStore creates a store seeded with builtins. A nil slice
// seeds the fallback catalog.
func NewInMemoryPresetStore(builtins []models.Preset) *InMemoryPresetStore {
	if builtins == nil {
		builtins = Fallback()
	}
	s := &InMemoryPresetStore{presets: make(map[string]models.Preset, len(builtins))}
	for _, p := range builtins {
		if p.Key == "" {
			p.Key = models.PresetKey(p.Name)
		}
		p.BuiltIn = true
		s.presets[p.Key] = p
	}
	return s
}

// LoadAll returns every preset keyed by display name.
func (s *InMemoryPresetStore) LoadAll(ctx context.Context) (map[string]models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Preset, len(s.presets))
	for _, p := range s.presets {
		out[p.Name] = p
	}
	return out, nil
}

// Get returns a preset by name or key. Returns nil if not found.
func (s *InMemoryPresetStore) Get(ctx context.Context, name string) (*models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.presets {
		if match(p, name) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

// Save stores a user preset.
func (s *InMemoryPresetStore) Save(ctx context.Context, p models.Preset) error {
	p, err := prepare(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clashesWithBuiltin(s.presets, p) {
		return fmt.Errorf("saving %s: %w", p.Name, ErrReadOnly)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.presets[p.Key] = p
	return nil
}

// Delete removes a user preset.
func (s *InMemoryPresetStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.presets {
		if !match(p, name) {
			continue
		}
		if p.BuiltIn {
			return fmt.Errorf("deleting %s: %w", p.Name, ErrReadOnly)
		}
		delete(s.presets, key)
		return nil
	}
	return fmt.Errorf("deleting %s: %w", name, ErrNotFound)
}

// Close is a no-op.
func (s *InMemoryPresetStore) Close() error {
	return nil
}
