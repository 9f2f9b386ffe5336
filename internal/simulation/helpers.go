package simulation

import (
	"github.com/nvandessel/grag/internal/layers"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/tiers"
	"github.com/nvandessel/grag/internal/timestep"
)

// PresetControl returns a simple-mode config for the named preset.
func PresetControl(preset string, strength float64, totalLayers int) models.ControlConfig {
	cfg := models.NewControlConfig()
	cfg.Preset = preset
	cfg.Strength = strength
	cfg.TotalLayers = totalLayers
	return cfg
}

// ManualControl returns a simple-mode Custom config with explicit overrides.
func ManualControl(lambda, delta float64, totalLayers int) models.ControlConfig {
	cfg := models.NewControlConfig()
	cfg.LambdaOverride = lambda
	cfg.DeltaOverride = delta
	cfg.TotalLayers = totalLayers
	return cfg
}

// ExpertControl returns an expert-mode config with the given layer strategy,
// adaptive schedule and tier preset, all at their default settings.
func ExpertControl(strategy models.Strategy, shape models.ScheduleShape, tierPreset string, totalLayers int) models.ControlConfig {
	cfg := models.NewControlConfig()
	cfg.Mode = models.ModeExpert
	cfg.TotalLayers = totalLayers

	perLayer := layers.DefaultConfig(strategy, totalLayers)
	adaptive := timestep.DefaultConfig(shape)
	multiRes := tiers.DefaultConfig(tierPreset)
	cfg.PerLayer = &perLayer
	cfg.Adaptive = &adaptive
	cfg.MultiRes = &multiRes
	return cfg
}

func patchController(sinks ...logging.Sink) *patch.Controller {
	return patch.NewController(nil, logging.Tee(sinks...))
}
