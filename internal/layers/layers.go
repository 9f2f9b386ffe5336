// Package layers distributes (λ, δ) across transformer blocks.
//
// Every strategy maps the normalized layer position u = i/(N-1) (u = 0 when
// N = 1) to a value, independently for λ and δ, and clamps the result to the
// valid range. Build is a pure function: identical inputs give bit-identical
// output.
package layers

import (
	"math"

	"github.com/nvandessel/grag/internal/models"
)

// Build returns exactly cfg.TotalLayers pairs, or n copies of base when cfg
// is nil. The copies are not clamped: base is still unscaled by the
// timestep multiplier, and the schedule clamps once after composing.
func Build(base models.ModulationPair, cfg *models.PerLayerConfig, n int) ([]models.ModulationPair, error) {
	if cfg == nil {
		if n < 1 {
			return nil, models.NewConfigurationError("total_layers", n, "must be >= 1")
		}
		out := make([]models.ModulationPair, n)
		for i := range out {
			out[i] = base
		}
		return out, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lambdaCurve := curveFor(cfg.Strategy, cfg.LambdaStart, cfg.LambdaEnd, cfg.LambdaMid)
	deltaCurve := curveFor(cfg.Strategy, cfg.DeltaStart, cfg.DeltaEnd, cfg.DeltaMid)

	out := make([]models.ModulationPair, cfg.TotalLayers)
	for i := range out {
		u := Position(i, cfg.TotalLayers)
		out[i] = models.ModulationPair{
			Lambda: models.ClampValue(lambdaCurve(u)),
			Delta:  models.ClampValue(deltaCurve(u)),
		}
	}
	return out, nil
}

// Position normalizes layer index i of n into [0, 1].
func Position(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

type curve func(u float64) float64

func curveFor(s models.Strategy, start, end float64, mid *float64) curve {
	switch s {
	case models.StrategySemanticFocused:
		return bell(start, end, mid)
	case models.StrategyDetailEnhancer:
		return valley(end, mid)
	case models.StrategyStructurePreserving, models.StrategyBalancedProgressive, models.StrategyCustom:
		return linear(start, end)
	}
	// Unreachable after Validate.
	return linear(start, end)
}

func linear(start, end float64) curve {
	return func(u float64) float64 {
		return start + (end-start)*u
	}
}

// bell peaks at u = 0.5. With an explicit midpoint it tapers to start at both
// ends; otherwise it rises from min(start, end) to max(start, end).
func bell(start, end float64, mid *float64) curve {
	lo, peak := math.Min(start, end), math.Max(start, end)
	if mid != nil {
		lo, peak = start, *mid
	}
	return func(u float64) float64 {
		return lo + (peak-lo)*math.Sin(math.Pi*u)
	}
}

// valley is the complement of bell: it equals end at both ends and dips to
// mid at u = 0.5. Without a midpoint it is constant at end.
func valley(end float64, mid *float64) curve {
	if mid == nil {
		return func(float64) float64 { return end }
	}
	dip := *mid
	return func(u float64) float64 {
		return end - (end-dip)*math.Sin(math.Pi*u)
	}
}

// Range returns the min and max of λ and δ across pairs.
func Range(pairs []models.ModulationPair) (lo, hi models.ModulationPair) {
	if len(pairs) == 0 {
		return models.Neutral(), models.Neutral()
	}
	lo, hi = pairs[0], pairs[0]
	for _, p := range pairs[1:] {
		lo.Lambda = math.Min(lo.Lambda, p.Lambda)
		lo.Delta = math.Min(lo.Delta, p.Delta)
		hi.Lambda = math.Max(hi.Lambda, p.Lambda)
		hi.Delta = math.Max(hi.Delta, p.Delta)
	}
	return lo, hi
}
