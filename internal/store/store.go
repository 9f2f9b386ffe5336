// Package store defines the PresetStore interface for loading and saving
// GRAG presets, with in-memory, YAML file and SQLite implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/models"
)

var (
	// ErrNotFound is returned by Delete when no user preset matches.
	ErrNotFound = errors.New("preset not found")

	// ErrReadOnly is returned when saving over or deleting a built-in preset.
	ErrReadOnly = errors.New("built-in presets are read-only")
)

// PresetStore loads, saves and deletes presets.
//
// Presets are identified by display name; Get and Delete also accept the
// normalized key. Built-in catalog presets are read-only.
type PresetStore interface {
	// LoadAll returns every preset keyed by display name.
	LoadAll(ctx context.Context) (map[string]models.Preset, error)

	// Get returns the preset with the given name or key, or nil if none.
	Get(ctx context.Context, name string) (*models.Preset, error)

	// Save validates and stores a user preset, replacing one with the same key.
	Save(ctx context.Context, p models.Preset) error

	// Delete removes a user preset by name or key.
	Delete(ctx context.Context, name string) error

	Close() error
}

// List returns every preset sorted by category display order, then name.
// Unknown categories sort after the known ones.
func List(ctx context.Context, s PresetStore) ([]models.Preset, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Preset, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	Sort(out)
	return out, nil
}

// Sort orders presets by category display order, then name.
func Sort(presets []models.Preset) {
	rank := make(map[string]int, len(constants.PresetCategoryOrder))
	for i, c := range constants.PresetCategoryOrder {
		rank[c] = i
	}
	order := func(cat string) int {
		if r, ok := rank[cat]; ok {
			return r
		}
		return len(rank)
	}
	sort.SliceStable(presets, func(i, j int) bool {
		ri, rj := order(presets[i].Category), order(presets[j].Category)
		if ri != rj {
			return ri < rj
		}
		return presets[i].Name < presets[j].Name
	})
}

// Lookup resolves a preset reference for a run. An empty reference or the
// Custom preset returns nil, which the resolver treats as Custom. Unknown
// names are configuration errors.
func Lookup(ctx context.Context, s PresetStore, ref string) (*models.Preset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || models.PresetKey(ref) == models.PresetKey(constants.CustomPresetName) {
		return nil, nil
	}
	p, err := s.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("looking up preset %q: %w", ref, err)
	}
	if p == nil {
		return nil, models.NewConfigurationError("preset", ref, "unknown preset")
	}
	return p, nil
}

// prepare normalizes a preset about to be saved.
func prepare(p models.Preset) (models.Preset, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return models.Preset{}, err
	}
	p.Key = models.PresetKey(p.Name)
	if p.Category == "" {
		p.Category = constants.UserCategory
	}
	if p.Description == "" {
		p.Description = "Custom preset: " + p.Name
	}
	if p.UseCase == "" {
		p.UseCase = "user-defined"
	}
	p.BuiltIn = false
	return p, nil
}

// clashesWithBuiltin reports whether p would replace a built-in preset,
// either by key or by display name.
func clashesWithBuiltin(presets map[string]models.Preset, p models.Preset) bool {
	for key, existing := range presets {
		if existing.BuiltIn && (key == p.Key || existing.Name == p.Name) {
			return true
		}
	}
	return false
}

// match reports whether ref names p by display name or key.
func match(p models.Preset, ref string) bool {
	return p.Name == ref || p.Key == models.PresetKey(ref)
}
