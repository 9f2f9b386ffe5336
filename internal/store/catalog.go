package store

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/grag/internal/models"
)

//go:embed catalog/presets.yaml
var catalogYAML []byte

// presetFile is the on-disk layout shared by the embedded catalog and
// user_custom.yaml.
type presetFile struct {
	Presets  map[string]models.Preset `yaml:"presets"`
	Metadata *fileMetadata            `yaml:"metadata,omitempty"`
}

type fileMetadata struct {
	Version      string `yaml:"version"`
	TotalPresets int    `yaml:"total_presets"`
	LastUpdated  string `yaml:"last_updated"`
}

// Fallback returns the minimal built-in catalog used when the extended
// catalog is unavailable.
func Fallback() []models.Preset {
	return []models.Preset{
		{Key: "custom", Name: "Custom", LambdaBase: 1.0, DeltaBase: 1.0, StrengthDefault: 1.0,
			Category: "manual", Description: "Manual control - adjust all parameters yourself", BuiltIn: true},
		{Key: "paper_balanced", Name: "Paper: Balanced", LambdaBase: 1.05, DeltaBase: 1.10, StrengthDefault: 1.0,
			Category: "paper_stable", Description: "Recommended starting point (paper validated)", BuiltIn: true},
		{Key: "paper_subtle", Name: "Paper: Subtle", LambdaBase: 1.00, DeltaBase: 1.05, StrengthDefault: 1.0,
			Category: "paper_stable", Description: "Subtle edit within paper's stable range", BuiltIn: true},
		{Key: "v221_balanced", Name: "v2.2.1: Balanced", LambdaBase: 1.00, DeltaBase: 1.50, StrengthDefault: 1.0,
			Category: "v221_proven", Description: "v2.2.1 proven range for visible effects", BuiltIn: true},
		{Key: "clean_room_gentle", Name: "Clean Room: Gentle", LambdaBase: 0.85, DeltaBase: 1.15, StrengthDefault: 1.0,
			Category: "clean_room", Description: "Window preservation, gentle scaffolding removal", BuiltIn: true},
	}
}

// Catalog returns the extended built-in catalog embedded in the binary.
func Catalog() ([]models.Preset, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(data []byte) ([]models.Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing preset catalog: %w", err)
	}
	out := make([]models.Preset, 0, len(f.Presets))
	for key, p := range f.Presets {
		p.Key = key
		p.BuiltIn = true
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog preset %s: %w", key, err)
		}
		out = append(out, p)
	}
	Sort(out)
	return out, nil
}
