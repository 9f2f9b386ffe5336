// Package timestep computes the multiplier applied to layer values as
// denoising progresses from t = 0 (first step) to t = 1 (last step).
package timestep

import (
	"math"

	"github.com/nvandessel/grag/internal/models"
)

// Multiplier returns (m_λ, m_δ) for progress t under cfg.
// A nil or disabled config yields (1.0, 1.0). Progress is clamped to [0, 1].
func Multiplier(t float64, cfg *models.AdaptiveConfig) (mLambda, mDelta float64) {
	if cfg == nil || !cfg.Enabled {
		return 1.0, 1.0
	}
	m := cfg.MultiplierStart + (cfg.MultiplierEnd-cfg.MultiplierStart)*Ease(cfg.Schedule, t)
	return m, m
}

// Ease maps progress t in [0, 1] to the shape's curve position in [0, 1].
func Ease(shape models.ScheduleShape, t float64) float64 {
	t = clampUnit(t)
	switch shape {
	case models.ScheduleGentleToStrong:
		return t
	case models.ScheduleConservative:
		return t * t
	case models.ScheduleAggressive:
		return 1 - (1-t)*(1-t)
	case models.ScheduleSmoothTransition:
		return (1 - math.Cos(math.Pi*t)) / 2
	case models.ScheduleDiffusionAligned:
		return math.Sin(math.Pi * t / 2)
	}
	return t
}

// Progress converts a step index into normalized progress.
// A single-step run has progress 0.
func Progress(step, totalSteps int) float64 {
	if totalSteps <= 1 {
		return 0
	}
	return clampUnit(float64(step) / float64(totalSteps-1))
}

// Table returns the multiplier for every step of a run.
func Table(cfg *models.AdaptiveConfig, totalSteps int) []float64 {
	if totalSteps < 1 {
		return nil
	}
	out := make([]float64, totalSteps)
	for i := range out {
		m, _ := Multiplier(Progress(i, totalSteps), cfg)
		out[i] = m
	}
	return out
}

func clampUnit(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
