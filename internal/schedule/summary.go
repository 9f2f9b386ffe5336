package schedule

import (
	"fmt"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/layers"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/timestep"
)

// Summary describes a schedule for diagnostics output.
type Summary struct {
	Mode       models.Mode           `json:"mode"`
	Enabled    bool                  `json:"enabled"`
	Preset     string                `json:"preset"`
	Strength   float64               `json:"strength"`
	Base       models.ModulationPair `json:"base"`
	Layers     int                   `json:"layers"`
	LayerMin   models.ModulationPair `json:"layer_min"`
	LayerMax   models.ModulationPair `json:"layer_max"`
	Adaptive   string                `json:"adaptive,omitempty"`
	Tiers      int                   `json:"tiers"`
	Advisories []string              `json:"advisories,omitempty"`
}

// Summarize reports the schedule's shape and any advisories.
func (s *Schedule) Summarize() Summary {
	lo, hi := layers.Range(s.LayerPairs)
	sum := Summary{
		Mode:       s.Mode,
		Enabled:    s.Enabled,
		Preset:     s.Preset,
		Strength:   s.Strength,
		Base:       s.Base,
		Layers:     len(s.LayerPairs),
		LayerMin:   lo,
		LayerMax:   hi,
		Tiers:      len(s.tiers),
		Advisories: s.Advisories(),
	}
	if s.adaptive != nil {
		sum.Adaptive = string(s.adaptive.Schedule)
	}
	return sum
}

// Advisories lists conditions worth warning about that are not errors:
// values outside the paper's stable range and strengths beyond the
// control surface's maximum.
func (s *Schedule) Advisories() []string {
	var out []string
	if s.Strength > constants.MaxStrength {
		out = append(out, fmt.Sprintf("strength %.2f exceeds %.1f", s.Strength, constants.MaxStrength))
	}
	if !s.Base.InStableRange() {
		out = append(out, fmt.Sprintf("base %s outside stable range [%.2f, %.2f]",
			s.Base, constants.StableMin, constants.StableMax))
	}

	lo, hi := s.extremes()
	if !lo.InStableRange() || !hi.InStableRange() {
		out = append(out, fmt.Sprintf("resolved values span %s .. %s, outside stable range [%.2f, %.2f]",
			lo, hi, constants.StableMin, constants.StableMax))
	}
	return out
}

// extremes returns the min and max final pairs across layers, both ends of
// the timestep range and every tier.
func (s *Schedule) extremes() (lo, hi models.ModulationPair) {
	edges := []int{0}
	for _, t := range s.tiers {
		edges = append(edges, t.ResolutionEdge)
	}
	var all []models.ModulationPair
	for _, edge := range edges {
		for _, t := range []float64{0, 0.5, 1} {
			for i := range s.LayerPairs {
				all = append(all, s.Lookup(i, t, edge))
			}
		}
	}
	return layers.Range(all)
}

// Multipliers returns the adaptive multiplier at each step, or all ones when
// no adaptive schedule is active.
func (s *Schedule) Multipliers(steps int) []float64 {
	return timestep.Table(s.adaptive, steps)
}
