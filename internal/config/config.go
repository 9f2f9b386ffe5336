// Package config provides unified configuration loading for grag.
// It supports loading from YAML files, a project .env file and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/layers"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/tiers"
	"github.com/nvandessel/grag/internal/timestep"
)

// GragConfig contains all grag configuration settings.
type GragConfig struct {
	// Control holds the defaults used to build a run's ControlConfig.
	Control ControlDefaults `json:"control" yaml:"control"`

	// Presets configures the preset store.
	Presets PresetsConfig `json:"presets" yaml:"presets"`

	// Logging contains settings for operational logging and diagnostics.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ControlDefaults are the control-surface defaults applied when a run does
// not specify them.
type ControlDefaults struct {
	// Mode is "simple", "advanced" or "expert".
	Mode string `json:"mode" yaml:"mode"`

	// Preset is the display name or key of the default preset.
	Preset string `json:"preset" yaml:"preset"`

	// Strength scales the preset's deviation from neutral.
	Strength float64 `json:"strength" yaml:"strength"`

	// TotalLayers is the host model's attention layer count.
	TotalLayers int `json:"total_layers" yaml:"total_layers"`

	// Steps is the number of denoising steps used by schedule previews
	// and the simulator.
	Steps int `json:"steps" yaml:"steps"`

	// LayerStrategy is applied in advanced and expert mode.
	LayerStrategy string `json:"layer_strategy" yaml:"layer_strategy"`

	// AdaptiveSchedule is applied in expert mode; empty disables it.
	AdaptiveSchedule string `json:"adaptive_schedule,omitempty" yaml:"adaptive_schedule,omitempty"`

	// TierPreset is applied in expert mode; empty disables multi-resolution.
	TierPreset string `json:"tier_preset,omitempty" yaml:"tier_preset,omitempty"`
}

// PresetsConfig configures where presets are stored.
type PresetsConfig struct {
	// Backend is "memory", "file" (default) or "sqlite".
	Backend string `json:"backend" yaml:"backend"`

	// Dir holds user presets. Supports ${VAR} syntax. Empty means ~/.grag/presets.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// LoggingConfig configures grag's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables diagnostics logging to .grag/diagnostics.jsonl.
	// "trace" additionally logs every reweighted attention call.
	Level string `json:"level" yaml:"level"`
}

// Default returns a GragConfig with sensible defaults.
func Default() *GragConfig {
	return &GragConfig{
		Control: ControlDefaults{
			Mode:          string(models.ModeSimple),
			Preset:        constants.CustomPresetName,
			Strength:      constants.DefaultStrength,
			TotalLayers:   constants.DefaultTotalLayers,
			Steps:         constants.DefaultSteps,
			LayerStrategy: string(models.StrategyBalancedProgressive),
		},
		Presets: PresetsConfig{
			Backend: string(constants.BackendFile),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HomeDir returns ~/.grag.
func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".grag"), nil
}

// Path returns the path of the user config file.
func Path() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.grag/config.yaml -> .env -> environment variables
func Load() (*GragConfig, error) {
	config := Default()

	// Try to load from default config file
	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load(".env")

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*GragConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Presets.Dir = expandEnvVars(config.Presets.Dir)

	return config, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg *GragConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *GragConfig) Validate() error {
	if _, err := models.ParseMode(c.Control.Mode); err != nil {
		return err
	}
	if c.Control.Strength < 0 {
		return models.NewConfigurationError("control.strength", c.Control.Strength, "must be non-negative")
	}
	if c.Control.TotalLayers < 1 || c.Control.TotalLayers > constants.MaxTotalLayers {
		return models.NewConfigurationError("control.total_layers", c.Control.TotalLayers,
			fmt.Sprintf("must be between 1 and %d", constants.MaxTotalLayers))
	}
	if c.Control.Steps < 1 {
		return models.NewConfigurationError("control.steps", c.Control.Steps, "must be >= 1")
	}
	if _, err := models.ParseStrategy(c.Control.LayerStrategy); err != nil {
		return err
	}
	if c.Control.AdaptiveSchedule != "" {
		if _, err := models.ParseScheduleShape(c.Control.AdaptiveSchedule); err != nil {
			return err
		}
	}
	if c.Control.TierPreset != "" {
		if _, ok := tiers.Presets[c.Control.TierPreset]; !ok {
			return models.NewConfigurationError("control.tier_preset", c.Control.TierPreset, "unknown tier preset")
		}
	}

	if !constants.Backend(c.Presets.Backend).Valid() {
		return fmt.Errorf("invalid preset backend: %s (valid: memory, file, sqlite)", c.Presets.Backend)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// PresetDir returns the configured preset directory, defaulting to
// ~/.grag/presets.
func (c *GragConfig) PresetDir() (string, error) {
	if c.Presets.Dir != "" {
		return c.Presets.Dir, nil
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "presets"), nil
}

// ControlConfig builds a run's ControlConfig from the defaults. Sections are
// filled in according to the mode: advanced adds the per-layer strategy,
// expert also adds the adaptive schedule and tier preset when configured.
func (c *GragConfig) ControlConfig() (models.ControlConfig, error) {
	mode, err := models.ParseMode(c.Control.Mode)
	if err != nil {
		return models.ControlConfig{}, err
	}

	cc := models.NewControlConfig()
	cc.Mode = mode
	cc.Preset = c.Control.Preset
	cc.Strength = c.Control.Strength
	cc.TotalLayers = c.Control.TotalLayers

	if mode.AllowsPerLayer() {
		strategy, err := models.ParseStrategy(c.Control.LayerStrategy)
		if err != nil {
			return models.ControlConfig{}, err
		}
		pl := layers.DefaultConfig(strategy, c.Control.TotalLayers)
		cc.PerLayer = &pl
	}
	if mode.AllowsExpert() {
		if c.Control.AdaptiveSchedule != "" {
			shape, err := models.ParseScheduleShape(c.Control.AdaptiveSchedule)
			if err != nil {
				return models.ControlConfig{}, err
			}
			ac := timestep.DefaultConfig(shape)
			cc.Adaptive = &ac
		}
		if c.Control.TierPreset != "" {
			mr := tiers.DefaultConfig(c.Control.TierPreset)
			cc.MultiRes = &mr
		}
	}
	return cc, cc.Validate()
}

// Get returns a configuration value by dot-notation key.
func (c *GragConfig) Get(key string) (any, bool) {
	switch key {
	case "control.mode":
		return c.Control.Mode, true
	case "control.preset":
		return c.Control.Preset, true
	case "control.strength":
		return c.Control.Strength, true
	case "control.total_layers":
		return c.Control.TotalLayers, true
	case "control.steps":
		return c.Control.Steps, true
	case "control.layer_strategy":
		return c.Control.LayerStrategy, true
	case "control.adaptive_schedule":
		return c.Control.AdaptiveSchedule, true
	case "control.tier_preset":
		return c.Control.TierPreset, true
	case "presets.backend":
		return c.Presets.Backend, true
	case "presets.dir":
		return c.Presets.Dir, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Keys lists every key accepted by Get and Set.
var Keys = []string{
	"control.mode",
	"control.preset",
	"control.strength",
	"control.total_layers",
	"control.steps",
	"control.layer_strategy",
	"control.adaptive_schedule",
	"control.tier_preset",
	"presets.backend",
	"presets.dir",
	"logging.level",
}

// Set assigns a configuration value by dot-notation key and validates the
// result. On error the config is left unchanged.
func (c *GragConfig) Set(key, value string) error {
	next := *c
	switch key {
	case "control.mode":
		next.Control.Mode = strings.ToLower(value)
	case "control.preset":
		next.Control.Preset = value
	case "control.strength":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid strength: %s (must be a number)", value)
		}
		next.Control.Strength = f
	case "control.total_layers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid total_layers: %s (must be an integer)", value)
		}
		next.Control.TotalLayers = n
	case "control.steps":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid steps: %s (must be an integer)", value)
		}
		next.Control.Steps = n
	case "control.layer_strategy":
		next.Control.LayerStrategy = value
	case "control.adaptive_schedule":
		next.Control.AdaptiveSchedule = value
	case "control.tier_preset":
		next.Control.TierPreset = value
	case "presets.backend":
		next.Presets.Backend = value
	case "presets.dir":
		next.Presets.Dir = value
	case "logging.level":
		next.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *GragConfig) {
	if v := os.Getenv("GRAG_MODE"); v != "" {
		config.Control.Mode = strings.ToLower(v)
	}

	if v := os.Getenv("GRAG_PRESET"); v != "" {
		config.Control.Preset = v
	}

	if v := os.Getenv("GRAG_STRENGTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Control.Strength = f
		}
	}

	if v := os.Getenv("GRAG_TOTAL_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Control.TotalLayers = n
		}
	}

	if v := os.Getenv("GRAG_PRESET_BACKEND"); v != "" {
		config.Presets.Backend = v
	}

	if v := os.Getenv("GRAG_PRESET_DIR"); v != "" {
		config.Presets.Dir = v
	}

	if v := os.Getenv("GRAG_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
