package models

import (
	"fmt"
	"strings"

	"github.com/nvandessel/grag/internal/constants"
)

// Mode selects how much of the control surface is honored.
type Mode string

const (
	ModeSimple   Mode = "simple"   // Preset + strength
	ModeAdvanced Mode = "advanced" // + per-layer strategy
	ModeExpert   Mode = "expert"   // + adaptive schedule and multi-resolution tiers
)

// ParseMode parses a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSimple, ModeAdvanced, ModeExpert:
		return m, nil
	}
	return "", NewConfigurationError("mode", s, "must be one of simple, advanced, expert")
}

// AllowsPerLayer reports whether per-layer settings are honored in this mode.
func (m Mode) AllowsPerLayer() bool {
	return m == ModeAdvanced || m == ModeExpert
}

// AllowsExpert reports whether adaptive and multi-resolution settings are honored.
func (m Mode) AllowsExpert() bool {
	return m == ModeExpert
}

// Strategy is the interpolation shape used across transformer layers.
type Strategy string

const (
	StrategyStructurePreserving Strategy = "structure_preserving"
	StrategySemanticFocused     Strategy = "semantic_focused"
	StrategyDetailEnhancer      Strategy = "detail_enhancer"
	StrategyBalancedProgressive Strategy = "balanced_progressive"
	StrategyCustom              Strategy = "custom"
)

// Strategies lists every layer strategy in display order.
var Strategies = []Strategy{
	StrategyStructurePreserving,
	StrategySemanticFocused,
	StrategyDetailEnhancer,
	StrategyBalancedProgressive,
	StrategyCustom,
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == strings.ToLower(strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", NewConfigurationError("per_layer.strategy", s, "unknown layer strategy")
}

// ScheduleShape is the curve used across denoising progress.
type ScheduleShape string

const (
	ScheduleSmoothTransition ScheduleShape = "smooth_transition"
	ScheduleGentleToStrong   ScheduleShape = "gentle_to_strong"
	ScheduleConservative     ScheduleShape = "conservative"
	ScheduleAggressive       ScheduleShape = "aggressive"
	ScheduleDiffusionAligned ScheduleShape = "diffusion_aligned"
)

// ScheduleShapes lists every adaptive schedule in display order.
var ScheduleShapes = []ScheduleShape{
	ScheduleSmoothTransition,
	ScheduleGentleToStrong,
	ScheduleConservative,
	ScheduleAggressive,
	ScheduleDiffusionAligned,
}

// ParseScheduleShape parses a schedule name.
func ParseScheduleShape(s string) (ScheduleShape, error) {
	for _, sh := range ScheduleShapes {
		if string(sh) == strings.ToLower(strings.TrimSpace(s)) {
			return sh, nil
		}
	}
	return "", NewConfigurationError("adaptive.schedule", s, "unknown adaptive schedule")
}

// PerLayerConfig describes how (λ, δ) vary across transformer blocks.
type PerLayerConfig struct {
	Strategy    Strategy `json:"strategy" yaml:"strategy"`
	LambdaStart float64  `json:"lambda_start" yaml:"lambda_start"`
	LambdaEnd   float64  `json:"lambda_end" yaml:"lambda_end"`
	DeltaStart  float64  `json:"delta_start" yaml:"delta_start"`
	DeltaEnd    float64  `json:"delta_end" yaml:"delta_end"`

	// LambdaMid and DeltaMid optionally pin the peak (semantic_focused) or
	// dip (detail_enhancer) value at the middle layer.
	LambdaMid *float64 `json:"lambda_mid,omitempty" yaml:"lambda_mid,omitempty"`
	DeltaMid  *float64 `json:"delta_mid,omitempty" yaml:"delta_mid,omitempty"`

	TotalLayers int `json:"total_layers" yaml:"total_layers"`
}

// Validate checks the per-layer section.
func (c *PerLayerConfig) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.TotalLayers < 1 {
		return NewConfigurationError("per_layer.total_layers", c.TotalLayers, "must be >= 1")
	}
	if c.TotalLayers > constants.MaxTotalLayers {
		return NewConfigurationError("per_layer.total_layers", c.TotalLayers,
			fmt.Sprintf("must be <= %d", constants.MaxTotalLayers))
	}
	endpoints := []struct {
		field string
		value float64
	}{
		{"per_layer.lambda_start", c.LambdaStart},
		{"per_layer.lambda_end", c.LambdaEnd},
		{"per_layer.delta_start", c.DeltaStart},
		{"per_layer.delta_end", c.DeltaEnd},
	}
	for _, ep := range endpoints {
		if !InRange(ep.value) {
			return NewConfigurationError(ep.field, ep.value, "must be in [0.1, 2.0]")
		}
	}
	if c.LambdaMid != nil && !InRange(*c.LambdaMid) {
		return NewConfigurationError("per_layer.lambda_mid", *c.LambdaMid, "must be in [0.1, 2.0]")
	}
	if c.DeltaMid != nil && !InRange(*c.DeltaMid) {
		return NewConfigurationError("per_layer.delta_mid", *c.DeltaMid, "must be in [0.1, 2.0]")
	}
	return nil
}

// AdaptiveConfig describes how a multiplier varies across denoising progress.
type AdaptiveConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Schedule        ScheduleShape `json:"schedule" yaml:"schedule"`
	MultiplierStart float64       `json:"multiplier_start" yaml:"multiplier_start"`
	MultiplierEnd   float64       `json:"multiplier_end" yaml:"multiplier_end"`
}

// Validate checks the adaptive section. Disabled sections are not checked.
func (c *AdaptiveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := ParseScheduleShape(string(c.Schedule)); err != nil {
		return err
	}
	if !InRange(c.MultiplierStart) {
		return NewConfigurationError("adaptive.multiplier_start", c.MultiplierStart, "must be in [0.1, 2.0]")
	}
	if !InRange(c.MultiplierEnd) {
		return NewConfigurationError("adaptive.multiplier_end", c.MultiplierEnd, "must be in [0.1, 2.0]")
	}
	return nil
}

// Tier is one spatial-resolution bracket with its own (λ, δ).
type Tier struct {
	ResolutionEdge int     `json:"resolution_edge" yaml:"resolution_edge"`
	Lambda         float64 `json:"lambda" yaml:"lambda"`
	Delta          float64 `json:"delta" yaml:"delta"`
}

// Pair returns the tier's modulation pair.
func (t Tier) Pair() ModulationPair {
	return ModulationPair{Lambda: t.Lambda, Delta: t.Delta}
}

// MultiResConfig holds the resolution tier table, ascending by edge.
type MultiResConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Tiers   []Tier `json:"tiers" yaml:"tiers"`
}

// Validate checks the tier table. Disabled sections are not checked.
func (c *MultiResConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Tiers) == 0 {
		return NewConfigurationError("multi_res.tiers", nil, "at least one tier is required")
	}
	for i, t := range c.Tiers {
		field := fmt.Sprintf("multi_res.tiers[%d]", i)
		if t.ResolutionEdge <= 0 {
			return NewConfigurationError(field+".resolution_edge", t.ResolutionEdge, "must be positive")
		}
		if i > 0 && t.ResolutionEdge <= c.Tiers[i-1].ResolutionEdge {
			return NewConfigurationError(field+".resolution_edge", t.ResolutionEdge, "tiers must be strictly ascending")
		}
		if err := t.Pair().Validate(field); err != nil {
			return err
		}
	}
	return nil
}

// ControlConfig is the resolved configuration for one sampling invocation.
type ControlConfig struct {
	Mode    Mode   `json:"mode" yaml:"mode"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Preset  string `json:"preset" yaml:"preset"`

	Strength float64 `json:"strength" yaml:"strength"`

	// LambdaOverride and DeltaOverride replace the computed value for that
	// axis when non-negative. OverrideUnset (-1) means "not set".
	LambdaOverride float64 `json:"lambda_override" yaml:"lambda_override"`
	DeltaOverride  float64 `json:"delta_override" yaml:"delta_override"`

	// TotalLayers is the host's attention layer count. PerLayer.TotalLayers
	// takes precedence when per-layer control is active.
	TotalLayers int `json:"total_layers" yaml:"total_layers"`

	PerLayer *PerLayerConfig `json:"per_layer,omitempty" yaml:"per_layer,omitempty"`
	Adaptive *AdaptiveConfig `json:"adaptive,omitempty" yaml:"adaptive,omitempty"`
	MultiRes *MultiResConfig `json:"multi_res,omitempty" yaml:"multi_res,omitempty"`
}

// NewControlConfig returns a simple-mode config with overrides unset.
func NewControlConfig() ControlConfig {
	return ControlConfig{
		Mode:           ModeSimple,
		Enabled:        true,
		Preset:         constants.CustomPresetName,
		Strength:       constants.DefaultStrength,
		LambdaOverride: constants.OverrideUnset,
		DeltaOverride:  constants.OverrideUnset,
		TotalLayers:    constants.DefaultTotalLayers,
	}
}

// HasLambdaOverride reports whether an explicit λ override is set.
func (c ControlConfig) HasLambdaOverride() bool {
	return c.LambdaOverride >= 0
}

// HasDeltaOverride reports whether an explicit δ override is set.
func (c ControlConfig) HasDeltaOverride() bool {
	return c.DeltaOverride >= 0
}

// Layers returns the effective layer count for the run.
func (c ControlConfig) Layers() int {
	if c.Mode.AllowsPerLayer() && c.PerLayer != nil {
		return c.PerLayer.TotalLayers
	}
	return c.TotalLayers
}

// Validate checks every section honored by the config's mode.
func (c ControlConfig) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Strength < 0 {
		return NewConfigurationError("strength", c.Strength, "must be non-negative")
	}
	if c.HasLambdaOverride() && !InRange(c.LambdaOverride) {
		return NewConfigurationError("lambda_override", c.LambdaOverride, "must be in [0.1, 2.0] or negative for unset")
	}
	if c.HasDeltaOverride() && !InRange(c.DeltaOverride) {
		return NewConfigurationError("delta_override", c.DeltaOverride, "must be in [0.1, 2.0] or negative for unset")
	}
	if c.TotalLayers < 1 {
		return NewConfigurationError("total_layers", c.TotalLayers, "must be >= 1")
	}
	if c.Mode.AllowsPerLayer() && c.PerLayer != nil {
		if err := c.PerLayer.Validate(); err != nil {
			return err
		}
	}
	if c.Mode.AllowsExpert() {
		if c.Adaptive != nil {
			if err := c.Adaptive.Validate(); err != nil {
				return err
			}
		}
		if c.MultiRes != nil {
			if err := c.MultiRes.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
