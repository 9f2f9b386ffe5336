package config

import (
	"github.com/nvandessel/grag/internal/models"
)

// Request overrides the configured control defaults for a single run.
// Zero values keep the configured default; pointer fields distinguish an
// explicit zero from "not set".
type Request struct {
	Mode             string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Preset           string   `json:"preset,omitempty" yaml:"preset,omitempty"`
	Strength         *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	Lambda           *float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"`
	Delta            *float64 `json:"delta,omitempty" yaml:"delta,omitempty"`
	TotalLayers      int      `json:"total_layers,omitempty" yaml:"total_layers,omitempty"`
	LayerStrategy    string   `json:"layer_strategy,omitempty" yaml:"layer_strategy,omitempty"`
	AdaptiveSchedule string   `json:"adaptive_schedule,omitempty" yaml:"adaptive_schedule,omitempty"`
	TierPreset       string   `json:"tier_preset,omitempty" yaml:"tier_preset,omitempty"`
	Disabled         bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Apply layers r over the configured defaults and returns the run's
// ControlConfig. The receiver is not modified.
func (c *GragConfig) Apply(r Request) (models.ControlConfig, error) {
	next := *c
	if r.Mode != "" {
		next.Control.Mode = r.Mode
	}
	if r.Preset != "" {
		next.Control.Preset = r.Preset
	}
	if r.Strength != nil {
		next.Control.Strength = *r.Strength
	}
	if r.TotalLayers != 0 {
		next.Control.TotalLayers = r.TotalLayers
	}
	if r.LayerStrategy != "" {
		next.Control.LayerStrategy = r.LayerStrategy
	}
	if r.AdaptiveSchedule != "" {
		next.Control.AdaptiveSchedule = r.AdaptiveSchedule
	}
	if r.TierPreset != "" {
		next.Control.TierPreset = r.TierPreset
	}

	cc, err := next.ControlConfig()
	if err != nil {
		return models.ControlConfig{}, err
	}
	if r.Lambda != nil {
		cc.LambdaOverride = *r.Lambda
	}
	if r.Delta != nil {
		cc.DeltaOverride = *r.Delta
	}
	cc.Enabled = !r.Disabled
	return cc, cc.Validate()
}
