package models

import (
	"fmt"
	"math"

	"github.com/nvandessel/grag/internal/constants"
)

// ModulationPair holds the λ (mean/bias) and δ (deviation) multipliers
// applied to one group of attention keys.
type ModulationPair struct {
	Lambda float64 `json:"lambda" yaml:"lambda"`
	Delta  float64 `json:"delta" yaml:"delta"`
}

// Neutral returns the identity pair (1.0, 1.0).
func Neutral() ModulationPair {
	return ModulationPair{Lambda: constants.NeutralLambda, Delta: constants.NeutralDelta}
}

// IsNeutral reports whether the pair is exactly the identity transform.
func (p ModulationPair) IsNeutral() bool {
	return p.Lambda == constants.NeutralLambda && p.Delta == constants.NeutralDelta
}

// Clamp limits both values to [MinModulation, MaxModulation].
func (p ModulationPair) Clamp() ModulationPair {
	return ModulationPair{
		Lambda: ClampValue(p.Lambda),
		Delta:  ClampValue(p.Delta),
	}
}

// Scale multiplies λ and δ elementwise.
func (p ModulationPair) Scale(mLambda, mDelta float64) ModulationPair {
	return ModulationPair{Lambda: p.Lambda * mLambda, Delta: p.Delta * mDelta}
}

// InRange reports whether both values lie in the valid range.
func (p ModulationPair) InRange() bool {
	return InRange(p.Lambda) && InRange(p.Delta)
}

// InStableRange reports whether both values lie in the paper's stable range.
func (p ModulationPair) InStableRange() bool {
	return p.Lambda >= constants.StableMin && p.Lambda <= constants.StableMax &&
		p.Delta >= constants.StableMin && p.Delta <= constants.StableMax
}

// Validate returns a ConfigurationError when either value is outside the
// valid range or not a finite number.
func (p ModulationPair) Validate(field string) error {
	if !InRange(p.Lambda) {
		return NewConfigurationError(field+".lambda", p.Lambda,
			fmt.Sprintf("must be in [%.1f, %.1f]", constants.MinModulation, constants.MaxModulation))
	}
	if !InRange(p.Delta) {
		return NewConfigurationError(field+".delta", p.Delta,
			fmt.Sprintf("must be in [%.1f, %.1f]", constants.MinModulation, constants.MaxModulation))
	}
	return nil
}

// String formats the pair the way diagnostics report it.
func (p ModulationPair) String() string {
	return fmt.Sprintf("λ=%.3f δ=%.3f", p.Lambda, p.Delta)
}

// ClampValue limits v to [MinModulation, MaxModulation].
// NaN clamps to the neutral value.
func ClampValue(v float64) float64 {
	if math.IsNaN(v) {
		return constants.NeutralLambda
	}
	return math.Max(constants.MinModulation, math.Min(constants.MaxModulation, v))
}

// InRange reports whether v is a finite number in [MinModulation, MaxModulation].
func InRange(v float64) bool {
	return !math.IsNaN(v) && v >= constants.MinModulation && v <= constants.MaxModulation
}
