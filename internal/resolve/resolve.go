// Package resolve turns a preset, a strength and optional overrides into the
// base (λ, δ) pair for a sampling run.
//
// Strength scales each value's deviation from neutral:
//
//	actual = 1.0 + (base - 1.0) * strength
//
// so strength 0 is exactly (1.0, 1.0) and strength 1 is exactly the preset's
// base. No clamping happens here; the schedule clamps once after every stage
// has been composed.
package resolve

import (
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/models"
)

// Overrides carries explicit λ/δ values. A negative value means unset.
type Overrides struct {
	Lambda float64
	Delta  float64
}

// NoOverrides returns Overrides with both axes unset.
func NoOverrides() Overrides {
	return Overrides{Lambda: constants.OverrideUnset, Delta: constants.OverrideUnset}
}

// Resolve computes the base pair for preset at strength.
// A nil preset or the Custom preset synthesizes the default deviations
// (0.2, 0.3) scaled by strength.
func Resolve(preset *models.Preset, strength float64, ov Overrides) (models.ModulationPair, error) {
	if strength < 0 {
		return models.ModulationPair{}, models.NewConfigurationError("strength", strength, "must be non-negative")
	}
	if ov.Lambda >= 0 && !models.InRange(ov.Lambda) {
		return models.ModulationPair{}, models.NewConfigurationError("lambda_override", ov.Lambda, "must be in [0.1, 2.0]")
	}
	if ov.Delta >= 0 && !models.InRange(ov.Delta) {
		return models.ModulationPair{}, models.NewConfigurationError("delta_override", ov.Delta, "must be in [0.1, 2.0]")
	}

	var pair models.ModulationPair
	if preset == nil || preset.IsCustom() {
		pair = models.ModulationPair{
			Lambda: constants.NeutralLambda + constants.CustomLambdaDeviation*strength,
			Delta:  constants.NeutralDelta + constants.CustomDeltaDeviation*strength,
		}
	} else {
		pair = Scale(preset.Base(), strength)
	}

	if ov.Lambda >= 0 {
		pair.Lambda = ov.Lambda
	}
	if ov.Delta >= 0 {
		pair.Delta = ov.Delta
	}
	return pair, nil
}

// Scale moves base toward (strength < 1) or away from (strength > 1) neutral.
func Scale(base models.ModulationPair, strength float64) models.ModulationPair {
	return models.ModulationPair{
		Lambda: constants.NeutralLambda + (base.Lambda-constants.NeutralLambda)*strength,
		Delta:  constants.NeutralDelta + (base.Delta-constants.NeutralDelta)*strength,
	}
}

// FromConfig resolves the base pair for a control config using the given
// preset (nil for Custom).
func FromConfig(cfg models.ControlConfig, preset *models.Preset) (models.ModulationPair, error) {
	return Resolve(preset, cfg.Strength, Overrides{Lambda: cfg.LambdaOverride, Delta: cfg.DeltaOverride})
}
