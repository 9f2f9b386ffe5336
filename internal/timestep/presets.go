package timestep

import "github.com/nvandessel/grag/internal/models"

// SchedulePreset holds the documented multiplier range for a named schedule.
type SchedulePreset struct {
	Name            string
	Shape           models.ScheduleShape
	MultiplierStart float64
	MultiplierEnd   float64
	Description     string
}

// Presets maps every schedule to its documented defaults.
var Presets = map[models.ScheduleShape]SchedulePreset{
	models.ScheduleGentleToStrong: {
		Name: "Gentle to Strong", Shape: models.ScheduleGentleToStrong,
		MultiplierStart: 0.8, MultiplierEnd: 1.5,
		Description: "Steady linear increase from gentle to strong",
	},
	models.ScheduleConservative: {
		Name: "Conservative", Shape: models.ScheduleConservative,
		MultiplierStart: 0.9, MultiplierEnd: 1.2,
		Description: "Slow start, moderate finish. Preserves structure.",
	},
	models.ScheduleAggressive: {
		Name: "Aggressive", Shape: models.ScheduleAggressive,
		MultiplierStart: 0.8, MultiplierEnd: 1.8,
		Description: "Fast ramp to a very strong finish. Maximum transformation.",
	},
	models.ScheduleSmoothTransition: {
		Name: "Smooth Transition", Shape: models.ScheduleSmoothTransition,
		MultiplierStart: 0.85, MultiplierEnd: 1.4,
		Description: "Smooth S-curve transition. Balanced and natural.",
	},
	models.ScheduleDiffusionAligned: {
		Name: "Diffusion Aligned", Shape: models.ScheduleDiffusionAligned,
		MultiplierStart: 0.8, MultiplierEnd: 1.5,
		Description: "Matches the diffusion model's cosine noise schedule.",
	},
}

// DefaultConfig returns an enabled adaptive config with the shape's documented range.
func DefaultConfig(shape models.ScheduleShape) models.AdaptiveConfig {
	p, ok := Presets[shape]
	if !ok {
		p = Presets[models.ScheduleSmoothTransition]
	}
	return models.AdaptiveConfig{
		Enabled:         true,
		Schedule:        shape,
		MultiplierStart: p.MultiplierStart,
		MultiplierEnd:   p.MultiplierEnd,
	}
}
