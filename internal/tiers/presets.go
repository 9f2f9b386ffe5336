package tiers

import "github.com/nvandessel/grag/internal/models"

// TierPreset is a named two-tier table.
type TierPreset struct {
	Name        string
	Tiers       []models.Tier
	Description string
}

// Presets maps tier preset keys to their tables.
var Presets = map[string]TierPreset{
	"paper_stable": {
		Name: "Paper: Stable (2-tier)",
		Tiers: []models.Tier{
			{ResolutionEdge: 512, Lambda: 1.0, Delta: 1.0},
			{ResolutionEdge: 4096, Lambda: 1.05, Delta: 1.10},
		},
		Description: "Paper-recommended stable configuration",
	},
	"v221_visible": {
		Name: "v2.2.1: Visible Effects",
		Tiers: []models.Tier{
			{ResolutionEdge: 512, Lambda: 0.9, Delta: 0.9},
			{ResolutionEdge: 4096, Lambda: 1.3, Delta: 1.3},
		},
		Description: "v2.2.1 proven range for visible effects",
	},
	"structure_preserving": {
		Name: "Structure Preserving",
		Tiers: []models.Tier{
			{ResolutionEdge: 512, Lambda: 1.0, Delta: 1.0},
			{ResolutionEdge: 4096, Lambda: 0.85, Delta: 1.15},
		},
		Description: "Neutral coarse, gentle details",
	},
	"detail_focused": {
		Name: "Detail Focused",
		Tiers: []models.Tier{
			{ResolutionEdge: 512, Lambda: 1.0, Delta: 1.0},
			{ResolutionEdge: 4096, Lambda: 1.5, Delta: 1.8},
		},
		Description: "Neutral coarse, strong details",
	},
}

// DefaultPreset is used when a tier preset name is unknown.
const DefaultPreset = "v221_visible"

// DefaultConfig returns an enabled multi-res config for a named preset.
// The tier slice is copied so callers may modify it.
func DefaultConfig(name string) models.MultiResConfig {
	p, ok := Presets[name]
	if !ok {
		p = Presets[DefaultPreset]
	}
	tiers := make([]models.Tier, len(p.Tiers))
	copy(tiers, p.Tiers)
	return models.MultiResConfig{Enabled: true, Tiers: tiers}
}
