package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/schedule"
	"github.com/nvandessel/grag/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// addRunFlags registers the flags that describe one run's control settings.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Read a full control config from a YAML file (other run flags are ignored)")
	cmd.Flags().String("mode", "", "Control mode: simple, advanced, expert")
	cmd.Flags().StringP("preset", "p", "", "Preset name or key")
	cmd.Flags().Float64P("strength", "s", 0, "Preset strength (0 = neutral, 1 = as defined)")
	cmd.Flags().Float64("lambda", -1, "Explicit λ override in [0.1, 2.0]")
	cmd.Flags().Float64("delta", -1, "Explicit δ override in [0.1, 2.0]")
	cmd.Flags().Int("layers", 0, "Attention layer count of the host model")
	cmd.Flags().String("strategy", "", "Per-layer strategy (advanced, expert)")
	cmd.Flags().String("adaptive", "", "Adaptive timestep schedule (expert)")
	cmd.Flags().String("tier-preset", "", "Multi-resolution tier preset (expert)")
	cmd.Flags().Bool("disabled", false, "Disable reweighting")
}

// requestFromFlags collects the run flags that were set on the command line.
func requestFromFlags(cmd *cobra.Command) config.Request {
	f := cmd.Flags()
	var r config.Request
	r.Mode, _ = f.GetString("mode")
	r.Preset, _ = f.GetString("preset")
	if f.Changed("strength") {
		v, _ := f.GetFloat64("strength")
		r.Strength = &v
	}
	if f.Changed("lambda") {
		v, _ := f.GetFloat64("lambda")
		r.Lambda = &v
	}
	if f.Changed("delta") {
		v, _ := f.GetFloat64("delta")
		r.Delta = &v
	}
	r.TotalLayers, _ = f.GetInt("layers")
	r.LayerStrategy, _ = f.GetString("strategy")
	r.AdaptiveSchedule, _ = f.GetString("adaptive")
	r.TierPreset, _ = f.GetString("tier-preset")
	r.Disabled, _ = f.GetBool("disabled")
	return r
}

// loadRunFile reads a ControlConfig from YAML. Omitted fields keep the
// simple-mode defaults.
func loadRunFile(path string) (models.ControlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ControlConfig{}, fmt.Errorf("reading run file: %w", err)
	}
	cc := models.NewControlConfig()
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return models.ControlConfig{}, fmt.Errorf("parsing run file: %w", err)
	}
	return cc, nil
}

// controlFromFlags returns the run's ControlConfig from -f or the run flags.
func controlFromFlags(cmd *cobra.Command, cfg *config.GragConfig) (models.ControlConfig, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		cc, err := loadRunFile(path)
		if err != nil {
			return models.ControlConfig{}, err
		}
		return cc, cc.Validate()
	}
	return cfg.Apply(requestFromFlags(cmd))
}

// buildSchedule resolves the run described by cmd's flags.
func buildSchedule(ctx context.Context, cmd *cobra.Command, cfg *config.GragConfig, presets store.PresetStore) (*schedule.Schedule, error) {
	cc, err := controlFromFlags(cmd, cfg)
	if err != nil {
		return nil, err
	}
	preset, err := store.Lookup(ctx, presets, cc.Preset)
	if err != nil {
		return nil, err
	}
	return schedule.Build(cc, preset)
}

// withSchedule loads config, opens the preset store and builds the run's
// schedule before calling fn.
func withSchedule(cmd *cobra.Command, fn func(*config.GragConfig, *schedule.Schedule) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	presets, _, err := openPresets(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer presets.Close()

	sched, err := buildSchedule(cmd.Context(), cmd, cfg, presets)
	if err != nil {
		return err
	}
	return fn(cfg, sched)
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the base (λ, δ) pair for a preset and strength",
		Long: `Resolve the base modulation pair before any per-layer, timestep or
resolution stage.

Examples:
  grag resolve -p "Paper: Balanced"            # preset at its default strength
  grag resolve -p paper_balanced -s 0.5        # halfway to neutral
  grag resolve -p "Paper: Balanced" --delta 1.3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchedule(cmd, func(_ *config.GragConfig, sched *schedule.Schedule) error {
				out := map[string]any{
					"preset":     sched.Preset,
					"strength":   sched.Strength,
					"lambda":     sched.Base.Lambda,
					"delta":      sched.Base.Delta,
					"neutral":    !sched.Enabled || sched.Base.IsNeutral(),
					"advisories": sched.Advisories(),
				}
				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), out)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Preset:   %s (strength %.2f)\n", sched.Preset, sched.Strength)
				fmt.Fprintf(w, "λ base:   %.4f\n", sched.Base.Lambda)
				fmt.Fprintf(w, "δ base:   %.4f\n", sched.Base.Delta)
				if !sched.Enabled {
					fmt.Fprintln(w, "Status:   disabled (attention runs unmodified)")
				}
				printAdvisories(w, sched.Advisories())
				return nil
			})
		},
	}
	addRunFlags(cmd)
	return cmd
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview the per-layer, per-step and per-resolution schedule",
		Long: `Preview the full schedule for a run.

The layer table shows each transformer layer's pair before the timestep
multiplier. In expert mode the multiplier for every step is listed, and
--tiers adds the pair each resolution tier resolves to at every step.

Examples:
  grag schedule -p "Paper: Balanced" --mode advanced --strategy detail_enhancer
  grag schedule --mode expert --adaptive smooth_transition --tier-preset paper_stable --tiers
  grag schedule -f run.yaml --steps 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			showTiers, _ := cmd.Flags().GetBool("tiers")

			return withSchedule(cmd, func(cfg *config.GragConfig, sched *schedule.Schedule) error {
				if steps == 0 {
					steps = cfg.Control.Steps
				}
				if steps < 1 {
					return models.NewConfigurationError("steps", steps, "must be at least 1")
				}

				summary := sched.Summarize()
				var multipliers []float64
				if sched.Adaptive() {
					multipliers = sched.Multipliers(steps)
				}
				var tierRows []schedule.TierRow
				if showTiers {
					tierRows = sched.TierTable(steps)
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"summary":     summary,
						"layers":      sched.LayerPairs,
						"multipliers": multipliers,
						"tiers":       tierRows,
					})
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Mode: %s  Preset: %s  Strength: %.2f  Base: %s\n",
					summary.Mode, summary.Preset, summary.Strength, summary.Base)
				if !summary.Enabled {
					fmt.Fprintln(w, "Reweighting is disabled; every lookup returns the neutral pair.")
				}
				fmt.Fprintln(w)

				layerTable := newTable("LAYER", "λ", "δ")
				for i, p := range sched.LayerPairs {
					layerTable.add(fmt.Sprint(i), fmt.Sprintf("%.4f", p.Lambda), fmt.Sprintf("%.4f", p.Delta))
				}
				layerTable.render(w)

				if multipliers != nil {
					fmt.Fprintf(w, "\nAdaptive schedule: %s\n", summary.Adaptive)
					mt := newTable("STEP", "m(t)")
					for i, m := range multipliers {
						mt.add(fmt.Sprint(i), fmt.Sprintf("%.4f", m))
					}
					mt.render(w)
				}

				if showTiers {
					if len(tierRows) == 0 {
						fmt.Fprintln(w, "\nMulti-resolution tiers are not active for this run.")
					} else {
						fmt.Fprintln(w)
						tt := newTable("STEP", "t", "EDGE", "λ", "δ")
						for _, r := range tierRows {
							tt.add(fmt.Sprint(r.Step), fmt.Sprintf("%.3f", r.Progress), fmt.Sprint(r.Edge),
								fmt.Sprintf("%.4f", r.Pair.Lambda), fmt.Sprintf("%.4f", r.Pair.Delta))
						}
						tt.render(w)
					}
				}

				printAdvisories(w, summary.Advisories)
				return nil
			})
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Int("steps", 0, "Denoising steps to preview (default: control.steps)")
	cmd.Flags().Bool("tiers", false, "Show the resolution tier table")
	return cmd
}

func printAdvisories(w io.Writer, advisories []string) {
	if len(advisories) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, a := range advisories {
		fmt.Fprintf(w, "warning: %s\n", strings.TrimSpace(a))
	}
}
