package main

import (
	"fmt"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/schedule"
	"github.com/nvandessel/grag/internal/simulation"
	"github.com/nvandessel/grag/internal/store"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic sampling loop with and without reweighting",
		Long: `Run the same deterministic sampling loop twice over a synthetic model,
once unmodified and once with the schedule installed, and report the
relative L2 distance between the two at every step.

The model is restored after the patched run; the report says whether every
layer came back unchanged. Diagnostics are written to .grag/diagnostics.jsonl
under --root when logging.level is debug or trace.

Examples:
  grag simulate -p "Paper: Balanced" --steps 20 --layers 8
  grag simulate --mode expert --tier-preset v221_visible --resolutions 512,1024`,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			layers, _ := cmd.Flags().GetInt("sim-layers")
			tokens, _ := cmd.Flags().GetInt("tokens")
			seed, _ := cmd.Flags().GetUint64("seed")
			resolutions, _ := cmd.Flags().GetIntSlice("resolutions")
			root, _ := cmd.Flags().GetString("root")

			return withSchedule(cmd, func(cfg *config.GragConfig, sched *schedule.Schedule) error {
				simCfg := simulation.DefaultConfig()
				if steps > 0 {
					simCfg.Steps = steps
				} else if cfg.Control.Steps > 0 {
					simCfg.Steps = cfg.Control.Steps
				}
				if tokens > 0 {
					simCfg.ImageTokens = tokens
				}
				simCfg.Seed = seed
				simCfg.Resolutions = resolutions
				if simCfg.Steps > constants.MaxSteps {
					return models.NewConfigurationError("steps", simCfg.Steps, fmt.Sprintf("must be <= %d", constants.MaxSteps))
				}
				if layers == 0 {
					layers = sched.LayerCount()
				}

				logger := newLogger(cfg)
				localDir := store.LocalGragPath(root)
				if err := store.EnsureDir(localDir); err != nil {
					return err
				}
				diagnostics := logging.NewDiagnosticsLog(localDir, cfg.Logging.Level)
				defer diagnostics.Close()

				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				report, err := simulation.Compare(ctx, patch.NewController(logger, diagnostics), sched, simCfg, layers)
				if err != nil {
					return err
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), report)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Preset: %s  Steps: %d  Layers: %d  Calls: %d (reweighted %d)\n\n",
					report.Preset, report.Steps, report.Layers, report.Calls, report.Reweighted)
				t := newTable("STEP", "EDGE", "DEVIATION")
				for i, d := range report.Deviation {
					t.add(fmt.Sprint(i), fmt.Sprint(simCfg.EdgeAt(i)), fmt.Sprintf("%.6f", d))
				}
				t.render(w)
				fmt.Fprintf(w, "\nFinal deviation: %.6f\n", report.FinalDeviation)
				if report.Restored {
					fmt.Fprintln(w, "Model restored: yes")
				} else {
					fmt.Fprintln(w, "Model restored: NO")
				}
				return nil
			})
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Int("steps", 0, "Denoising steps (default: control.steps)")
	cmd.Flags().Int("sim-layers", 0, "Attention layers in the synthetic model (default: --layers)")
	cmd.Flags().Int("tokens", 0, "Image tokens per sample")
	cmd.Flags().Uint64("seed", 1, "Random seed for the initial state")
	cmd.Flags().IntSlice("resolutions", nil, "Edge per progressive phase, low to high")
	return cmd
}
