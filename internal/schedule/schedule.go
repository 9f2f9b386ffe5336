// Package schedule composes the resolver, layer, timestep and tier stages
// into the resolved (λ, δ) schedule for one sampling run.
//
// The final pair for an attention call is
//
//	clamp(layer[i] ⊙ m(t))        multi-resolution off
//	clamp(tier(edge))             multi-resolution on
//
// where m(t) is the adaptive multiplier and clamp limits both values to the
// valid range. A tier replaces the layer and timestep result outright; it is
// not scaled by m(t). Clamping happens once, here, after every stage.
package schedule

import (
	"fmt"

	"github.com/nvandessel/grag/internal/layers"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/resolve"
	"github.com/nvandessel/grag/internal/tiers"
	"github.com/nvandessel/grag/internal/timestep"
)

// Schedule is the fully materialized schedule for one run. It is read-only
// after Build and safe for concurrent Lookup calls.
type Schedule struct {
	Mode     models.Mode
	Enabled  bool
	Preset   string
	Strength float64

	// Base is the resolver output before any layer, timestep or tier stage.
	Base models.ModulationPair

	// LayerPairs holds one pair per transformer layer. Pairs from a
	// per-layer strategy are clamped; copies of Base are not.
	LayerPairs []models.ModulationPair

	adaptive *models.AdaptiveConfig
	tiers    []models.Tier
}

// Build validates cfg and resolves its schedule. preset may be nil for the
// Custom preset. Sections the mode does not honor are ignored.
func Build(cfg models.ControlConfig, preset *models.Preset) (*Schedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := resolve.FromConfig(cfg, preset)
	if err != nil {
		return nil, err
	}

	var perLayer *models.PerLayerConfig
	if cfg.Mode.AllowsPerLayer() {
		perLayer = cfg.PerLayer
	}
	pairs, err := layers.Build(base, perLayer, cfg.Layers())
	if err != nil {
		return nil, fmt.Errorf("building layer schedule: %w", err)
	}

	s := &Schedule{
		Mode:       cfg.Mode,
		Enabled:    cfg.Enabled,
		Preset:     cfg.Preset,
		Strength:   cfg.Strength,
		Base:       base,
		LayerPairs: pairs,
	}
	if preset != nil {
		s.Preset = preset.Name
	}
	if cfg.Mode.AllowsExpert() {
		if cfg.Adaptive != nil && cfg.Adaptive.Enabled {
			a := *cfg.Adaptive
			s.adaptive = &a
		}
		if cfg.MultiRes != nil && cfg.MultiRes.Enabled {
			s.tiers = append([]models.Tier(nil), cfg.MultiRes.Tiers...)
		}
	}
	return s, nil
}

// LayerCount returns the number of layers the schedule covers.
func (s *Schedule) LayerCount() int {
	return len(s.LayerPairs)
}

// Adaptive reports whether a timestep multiplier is active.
func (s *Schedule) Adaptive() bool {
	return s.adaptive != nil
}

// MultiRes reports whether resolution tiers override the layer values.
func (s *Schedule) MultiRes() bool {
	return len(s.tiers) > 0
}

// Tiers returns a copy of the active tier table.
func (s *Schedule) Tiers() []models.Tier {
	return append([]models.Tier(nil), s.tiers...)
}

// Lookup returns the final pair for layer at progress t and resolution edge.
// Layer indices outside the table use the nearest layer. A disabled schedule
// always returns the neutral pair.
func (s *Schedule) Lookup(layer int, t float64, edge int) models.ModulationPair {
	if !s.Enabled || len(s.LayerPairs) == 0 {
		return models.Neutral()
	}
	if len(s.tiers) > 0 {
		// Tables are validated non-empty in Build, so Select cannot fail.
		i, _ := tiers.Select(edge, s.tiers)
		return s.tiers[i].Pair().Clamp()
	}
	pair := s.LayerPairs[clampIndex(layer, len(s.LayerPairs))]
	mLambda, mDelta := timestep.Multiplier(t, s.adaptive)
	return pair.Scale(mLambda, mDelta).Clamp()
}

// StepTable returns the final pair for every (step, layer) at edge.
func (s *Schedule) StepTable(steps, edge int) [][]models.ModulationPair {
	if steps < 1 {
		return nil
	}
	out := make([][]models.ModulationPair, steps)
	for step := range out {
		t := timestep.Progress(step, steps)
		row := make([]models.ModulationPair, len(s.LayerPairs))
		for i := range row {
			row[i] = s.Lookup(i, t, edge)
		}
		out[step] = row
	}
	return out
}

// TierRow is the pair one tier resolves to at one step.
type TierRow struct {
	Step     int                   `json:"step"`
	Progress float64               `json:"progress"`
	Edge     int                   `json:"resolution_edge"`
	Pair     models.ModulationPair `json:"pair"`
}

// TierTable returns, for every step, the pair each tier resolves to. It is
// empty when multi-resolution is off.
func (s *Schedule) TierTable(steps int) []TierRow {
	if len(s.tiers) == 0 || steps < 1 {
		return nil
	}
	rows := make([]TierRow, 0, steps*len(s.tiers))
	for step := 0; step < steps; step++ {
		t := timestep.Progress(step, steps)
		for _, tier := range s.tiers {
			rows = append(rows, TierRow{
				Step:     step,
				Progress: t,
				Edge:     tier.ResolutionEdge,
				Pair:     s.Lookup(0, t, tier.ResolutionEdge),
			})
		}
	}
	return rows
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
