package tiers

import (
	"testing"

	"github.com/nvandessel/grag/internal/models"
)

func threeTiers() []models.Tier {
	return []models.Tier{
		{ResolutionEdge: 512, Lambda: 1.0, Delta: 1.0},
		{ResolutionEdge: 1024, Lambda: 1.1, Delta: 1.2},
		{ResolutionEdge: 4096, Lambda: 1.3, Delta: 1.5},
	}
}

func TestSelect(t *testing.T) {
	tiers := threeTiers()

	tests := []struct {
		name string
		edge int
		want int
	}{
		{"below smallest clamps to first", 128, 0},
		{"exactly first", 512, 0},
		{"between first and second", 900, 0},
		{"exactly second", 1024, 1},
		{"between second and third", 4095, 1},
		{"exactly last", 4096, 2},
		{"above largest clamps to last", 10000, 2},
		{"zero edge", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.edge, tiers)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Select(%d) = %d, want %d", tt.edge, got, tt.want)
			}
		})
	}
}

func TestSelect_Empty(t *testing.T) {
	if _, err := Select(512, nil); !models.IsConfigurationError(err) {
		t.Errorf("Select(empty) error = %v, want configuration error", err)
	}
}

func TestResolve(t *testing.T) {
	upstream := models.ModulationPair{Lambda: 0.7, Delta: 1.9}

	got, err := Resolve(2048, nil, upstream)
	if err != nil || got != upstream {
		t.Errorf("nil config: got %v, %v; want upstream", got, err)
	}

	disabled := &models.MultiResConfig{Enabled: false, Tiers: threeTiers()}
	got, err = Resolve(2048, disabled, upstream)
	if err != nil || got != upstream {
		t.Errorf("disabled config: got %v, %v; want upstream", got, err)
	}

	enabled := &models.MultiResConfig{Enabled: true, Tiers: threeTiers()}
	got, err = Resolve(2048, enabled, upstream)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != (models.ModulationPair{Lambda: 1.1, Delta: 1.2}) {
		t.Errorf("Resolve(2048) = %v, want tier 1 override", got)
	}
}

func TestEdgeFromTokens(t *testing.T) {
	tests := []struct {
		tokens, patch, want int
	}{
		{4096, 16, 1024},
		{1024, 0, 512},
		{0, 16, 0},
		{4000, 16, 1008},
	}

	for _, tt := range tests {
		if got := EdgeFromTokens(tt.tokens, tt.patch); got != tt.want {
			t.Errorf("EdgeFromTokens(%d, %d) = %d, want %d", tt.tokens, tt.patch, got, tt.want)
		}
	}
}

func TestDefaultConfig_CopiesTiers(t *testing.T) {
	cfg := DefaultConfig("paper_stable")
	cfg.Tiers[0].Lambda = 1.9
	if Presets["paper_stable"].Tiers[0].Lambda != 1.0 {
		t.Error("DefaultConfig must not alias the preset table")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate: %v", err)
	}

	fallback := DefaultConfig("nope")
	if fallback.Tiers[1].Lambda != 1.3 {
		t.Errorf("unknown preset should fall back to %s", DefaultPreset)
	}
}
