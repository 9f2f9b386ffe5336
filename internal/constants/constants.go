// Package constants provides named constants used throughout the grag codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Neutral point of the reweighting transform.
const (
	// NeutralLambda is the λ value at which the mean component is untouched.
	NeutralLambda = 1.0

	// NeutralDelta is the δ value at which the deviation component is untouched.
	NeutralDelta = 1.0
)

// Valid parameter range. Values outside it are configuration errors when
// supplied directly and are clamped when produced by schedule composition.
const (
	// MinModulation is the lowest accepted λ or δ.
	MinModulation = 0.1

	// MaxModulation is the highest accepted λ or δ.
	MaxModulation = 2.0
)

// Paper stable range. Values outside it are reported as advisories, never errors.
const (
	// StableMin is the lower bound of the range validated in the GRAG paper.
	StableMin = 0.95

	// StableMax is the upper bound of the range validated in the GRAG paper.
	StableMax = 1.15
)

// Custom preset defaults.
const (
	// CustomPresetName is the display name of the manual-control preset.
	CustomPresetName = "Custom"

	// CustomLambdaDeviation is the λ deviation from neutral synthesized for
	// the Custom preset at strength 1.0.
	CustomLambdaDeviation = 0.2

	// CustomDeltaDeviation is the δ deviation from neutral synthesized for
	// the Custom preset at strength 1.0.
	CustomDeltaDeviation = 0.3

	// OverrideUnset is the sentinel for "no explicit λ/δ override".
	// Any negative override is treated as unset.
	OverrideUnset = -1.0
)

// Strength slider bounds as exposed by the control surface.
const (
	// DefaultStrength leaves a preset at its intended effect.
	DefaultStrength = 1.0

	// MaxStrength is the largest strength the control surface offers.
	// Larger values are accepted by the resolver but flagged as advisories.
	MaxStrength = 2.0
)

// Layer and step defaults.
const (
	// DefaultTotalLayers matches the Qwen-Image transformer depth.
	DefaultTotalLayers = 60

	// MaxTotalLayers bounds user-supplied layer counts.
	MaxTotalLayers = 1000

	// MaxSteps bounds step counts accepted for previews and simulation.
	MaxSteps = 1000

	// DefaultSteps is the number of denoising steps assumed by the simulator.
	DefaultSteps = 20
)

// Multi-resolution defaults.
const (
	// DefaultPatchSize is the spatial edge, in pixels, covered by one image token
	// (8x VAE downsampling times 2x2 patchify).
	DefaultPatchSize = 16
)

// Preset categories, listed in display order.
var PresetCategoryOrder = []string{
	"manual",
	"paper_stable",
	"v221_proven",
	"clean_room",
	"v221_experimental",
	"conservative",
	"user_custom",
}

// UserCategory is the category assigned to presets saved without one.
const UserCategory = "user_custom"
