package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/nvandessel/grag/internal/constants"
)

// Preset is a named (λ, δ) base pair with a default strength.
// Presets are immutable once loaded; the core only reads them.
type Preset struct {
	// Key is the storage identifier, e.g. "paper_balanced".
	Key string `json:"key" yaml:"key"`

	// Name is the unique display name, e.g. "Paper: Balanced".
	Name string `json:"name" yaml:"name"`

	LambdaBase      float64 `json:"lambda" yaml:"lambda"`
	DeltaBase       float64 `json:"delta" yaml:"delta"`
	StrengthDefault float64 `json:"strength" yaml:"strength"`

	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	UseCase     string `json:"use_case,omitempty" yaml:"use_case,omitempty"`

	// BuiltIn marks catalog presets that cannot be deleted or overwritten.
	BuiltIn bool `json:"builtin" yaml:"-"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created,omitempty"`
}

// Base returns the preset's base pair.
func (p Preset) Base() ModulationPair {
	return ModulationPair{Lambda: p.LambdaBase, Delta: p.DeltaBase}
}

// IsCustom reports whether this is the manual-control preset.
func (p Preset) IsCustom() bool {
	return p.Name == constants.CustomPresetName || p.Key == PresetKey(constants.CustomPresetName)
}

// Validate checks name and ranges of a preset about to be stored.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewConfigurationError("preset.name", nil, "is required")
	}
	if err := p.Base().Validate("preset"); err != nil {
		return err
	}
	if p.StrengthDefault < 0 {
		return NewConfigurationError("preset.strength", p.StrengthDefault, "must be non-negative")
	}
	return nil
}

// String implements fmt.Stringer.
func (p Preset) String() string {
	return fmt.Sprintf("%s (λ=%.2f, δ=%.2f, strength=%.2f)", p.Name, p.LambdaBase, p.DeltaBase, p.StrengthDefault)
}

// PresetKey normalizes a display name into a storage key:
// lowercase with spaces and dashes replaced by underscores.
func PresetKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
