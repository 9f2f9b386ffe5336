package mcp

import (
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/schedule"
)

// RunInput describes the control settings for one run. Unset fields fall
// back to the configured defaults.
type RunInput struct {
	Mode             string   `json:"mode,omitempty" jsonschema:"Control mode: simple, advanced or expert"`
	Preset           string   `json:"preset,omitempty" jsonschema:"Preset display name or key (e.g. 'Paper: Balanced')"`
	Strength         *float64 `json:"strength,omitempty" jsonschema:"Scales the preset's deviation from neutral (0 = neutral, 1 = as defined)"`
	Lambda           *float64 `json:"lambda,omitempty" jsonschema:"Explicit λ override in [0.1, 2.0]; negative means unset"`
	Delta            *float64 `json:"delta,omitempty" jsonschema:"Explicit δ override in [0.1, 2.0]; negative means unset"`
	TotalLayers      int      `json:"total_layers,omitempty" jsonschema:"Number of attention layers in the host model"`
	LayerStrategy    string   `json:"layer_strategy,omitempty" jsonschema:"Per-layer strategy (advanced and expert mode)"`
	AdaptiveSchedule string   `json:"adaptive_schedule,omitempty" jsonschema:"Adaptive timestep schedule (expert mode)"`
	TierPreset       string   `json:"tier_preset,omitempty" jsonschema:"Multi-resolution tier preset (expert mode)"`
	Disabled         bool     `json:"disabled,omitempty" jsonschema:"Disable reweighting; every lookup returns neutral"`
}

// ResolveInput defines the input for the grag_resolve tool.
type ResolveInput struct {
	Run RunInput `json:"run" jsonschema:"Control settings to resolve"`
}

// ResolveOutput defines the output for the grag_resolve tool.
type ResolveOutput struct {
	Preset     string   `json:"preset" jsonschema:"Preset the pair was resolved from"`
	Strength   float64  `json:"strength" jsonschema:"Strength applied"`
	Lambda     float64  `json:"lambda" jsonschema:"Resolved base λ"`
	Delta      float64  `json:"delta" jsonschema:"Resolved base δ"`
	Neutral    bool     `json:"neutral" jsonschema:"Whether the pair leaves attention unchanged"`
	Advisories []string `json:"advisories,omitempty" jsonschema:"Warnings about values outside the stable range"`
}

// ScheduleInput defines the input for the grag_schedule tool.
type ScheduleInput struct {
	Run   RunInput `json:"run" jsonschema:"Control settings for the schedule"`
	Steps int      `json:"steps,omitempty" jsonschema:"Number of denoising steps to preview"`
	Edge  int      `json:"edge,omitempty" jsonschema:"Spatial edge in pixels used for the per-step table"`
}

// ScheduleOutput defines the output for the grag_schedule tool.
type ScheduleOutput struct {
	Summary     schedule.Summary          `json:"summary" jsonschema:"Schedule shape and advisories"`
	Layers      []models.ModulationPair   `json:"layers" jsonschema:"Per-layer pairs before the timestep multiplier"`
	Multipliers []float64                 `json:"multipliers,omitempty" jsonschema:"Timestep multiplier for each step (expert mode)"`
	Tiers       []schedule.TierRow        `json:"tiers,omitempty" jsonschema:"Tier selected at each step (expert mode)"`
	Edge        int                       `json:"edge" jsonschema:"Resolution edge the step table was computed at"`
	Table       [][]models.ModulationPair `json:"table" jsonschema:"Final pair for every step and layer"`
}

// PresetsInput defines the input for the grag_presets tool.
type PresetsInput struct {
	Action      string  `json:"action" jsonschema:"One of list, show, save, delete"`
	Name        string  `json:"name,omitempty" jsonschema:"Preset name or key (show, save, delete)"`
	Lambda      float64 `json:"lambda,omitempty" jsonschema:"Base λ for save"`
	Delta       float64 `json:"delta,omitempty" jsonschema:"Base δ for save"`
	Strength    float64 `json:"strength,omitempty" jsonschema:"Default strength for save (default 1.0)"`
	Category    string  `json:"category,omitempty" jsonschema:"Category for save (default user_custom)"`
	Description string  `json:"description,omitempty" jsonschema:"Description for save"`
	UseCase     string  `json:"use_case,omitempty" jsonschema:"Intended use for save"`
}

// PresetItem is a list view of a preset.
type PresetItem struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Lambda   float64 `json:"lambda"`
	Delta    float64 `json:"delta"`
	Strength float64 `json:"strength"`
	Category string  `json:"category"`
	BuiltIn  bool    `json:"builtin"`
}

// PresetsOutput defines the output for the grag_presets tool.
type PresetsOutput struct {
	Action  string         `json:"action" jsonschema:"Action performed"`
	Backend string         `json:"backend" jsonschema:"Preset store backend in use"`
	Presets []PresetItem   `json:"presets,omitempty" jsonschema:"Presets (list)"`
	Preset  *models.Preset `json:"preset,omitempty" jsonschema:"The preset shown or saved"`
	Count   int            `json:"count" jsonschema:"Number of presets returned"`
	Message string         `json:"message" jsonschema:"Human-readable result message"`
}

// SimulateInput defines the input for the grag_simulate tool.
type SimulateInput struct {
	Run         RunInput `json:"run" jsonschema:"Control settings for the patched run"`
	Steps       int      `json:"steps,omitempty" jsonschema:"Denoising steps (default 12)"`
	Layers      int      `json:"layers,omitempty" jsonschema:"Attention layers in the synthetic model (default total_layers)"`
	ImageTokens int      `json:"image_tokens,omitempty" jsonschema:"Image tokens per sample (default 64)"`
	Seed        uint64   `json:"seed,omitempty" jsonschema:"Random seed for the initial state"`
	Resolutions []int    `json:"resolutions,omitempty" jsonschema:"Edge per progressive phase, low to high"`
}

// SimulateOutput defines the output for the grag_simulate tool.
type SimulateOutput struct {
	Steps          int       `json:"steps" jsonschema:"Steps completed"`
	Layers         int       `json:"layers" jsonschema:"Attention layers patched"`
	Calls          int       `json:"calls" jsonschema:"Attention calls issued"`
	Reweighted     int64     `json:"reweighted" jsonschema:"Attention calls that went through reweighting"`
	Deviation      []float64 `json:"deviation" jsonschema:"Relative L2 distance from the unpatched run, per step"`
	FinalDeviation float64   `json:"final_deviation" jsonschema:"Deviation after the last step"`
	Restored       bool      `json:"restored" jsonschema:"Whether every layer was restored afterwards"`
}
