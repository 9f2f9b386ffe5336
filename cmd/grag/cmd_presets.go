package main

import (
	"fmt"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/sanitize"
	"github.com/nvandessel/grag/internal/store"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage GRAG presets",
		Long: `List, inspect, save and delete presets.

Built-in presets come from the bundled catalog and are read-only. User
presets are stored by the configured backend (presets.backend).

Examples:
  grag presets list
  grag presets show "Paper: Balanced"
  grag presets save "My Look" --lambda 1.02 --delta 1.2 --description "soft detail"
  grag presets delete "My Look"
  grag presets export
  grag presets import ~/.grag/backups/grag-presets-20260101-120000.gragbak`,
	}

	cmd.AddCommand(
		newPresetsListCmd(),
		newPresetsShowCmd(),
		newPresetsSaveCmd(),
		newPresetsDeleteCmd(),
		newPresetsExportCmd(),
		newPresetsImportCmd(),
	)
	return cmd
}

// withPresets loads config and opens the preset store for fn.
func withPresets(fn func(store.PresetStore, constants.Backend) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	presets, backend, err := openPresets(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer presets.Close()
	return fn(presets, backend)
}

func newPresetsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List presets grouped by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			return withPresets(func(s store.PresetStore, backend constants.Backend) error {
				all, err := store.List(cmd.Context(), s)
				if err != nil {
					return fmt.Errorf("failed to list presets: %w", err)
				}
				presets := all[:0:0]
				for _, p := range all {
					if category == "" || p.Category == category {
						presets = append(presets, p)
					}
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"backend": backend,
						"presets": presets,
						"count":   len(presets),
					})
				}

				w := cmd.OutOrStdout()
				if len(presets) == 0 {
					fmt.Fprintln(w, "No presets found.")
					return nil
				}
				t := newTable("NAME", "λ", "δ", "STRENGTH", "CATEGORY", "DESCRIPTION")
				for _, p := range presets {
					name := p.Name
					if !p.BuiltIn {
						name += " *"
					}
					t.add(name,
						fmt.Sprintf("%.2f", p.LambdaBase),
						fmt.Sprintf("%.2f", p.DeltaBase),
						fmt.Sprintf("%.2f", p.StrengthDefault),
						p.Category,
						truncateCell(p.Description, 48))
				}
				t.render(w)
				fmt.Fprintf(w, "\n%d presets (%s backend, * = user preset)\n", len(presets), backend)
				return nil
			})
		},
	}
	cmd.Flags().String("category", "", "Only list presets in this category")
	return cmd
}

func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a preset by name or key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(func(s store.PresetStore, _ constants.Backend) error {
				p, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get preset: %w", err)
				}
				if p == nil {
					return fmt.Errorf("preset not found: %s", args[0])
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), p)
				}
				printPreset(cmd, p)
				return nil
			})
		},
	}
}

func printPreset(cmd *cobra.Command, p *models.Preset) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Name:         %s\n", p.Name)
	fmt.Fprintf(w, "Key:          %s\n", p.Key)
	fmt.Fprintf(w, "λ base:       %.4f\n", p.LambdaBase)
	fmt.Fprintf(w, "δ base:       %.4f\n", p.DeltaBase)
	fmt.Fprintf(w, "Strength:     %.2f\n", p.StrengthDefault)
	fmt.Fprintf(w, "Category:     %s\n", p.Category)
	if p.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", p.Description)
	}
	if p.UseCase != "" {
		fmt.Fprintf(w, "Use case:     %s\n", p.UseCase)
	}
	if p.BuiltIn {
		fmt.Fprintln(w, "Built-in:     yes")
	} else if !p.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:      %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func newPresetsSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a user preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lambda, _ := cmd.Flags().GetFloat64("lambda")
			delta, _ := cmd.Flags().GetFloat64("delta")
			strength, _ := cmd.Flags().GetFloat64("strength")
			category, _ := cmd.Flags().GetString("category")
			description, _ := cmd.Flags().GetString("description")
			useCase, _ := cmd.Flags().GetString("use-case")

			p := models.Preset{
				Name:            sanitize.PresetName(args[0]),
				LambdaBase:      lambda,
				DeltaBase:       delta,
				StrengthDefault: strength,
				Category:        sanitize.PresetName(category),
				Description:     sanitize.Text(description),
				UseCase:         sanitize.Text(useCase),
			}

			return withPresets(func(s store.PresetStore, _ constants.Backend) error {
				if err := s.Save(cmd.Context(), p); err != nil {
					return fmt.Errorf("failed to save preset: %w", err)
				}
				saved, err := s.Get(cmd.Context(), p.Name)
				if err != nil {
					return fmt.Errorf("failed to reload preset: %w", err)
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{"status": "saved", "preset": saved})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %q (%s)\n", saved.Name, saved.Base())
				return nil
			})
		},
	}
	cmd.Flags().Float64("lambda", constants.NeutralLambda, "Base λ in [0.1, 2.0]")
	cmd.Flags().Float64("delta", constants.NeutralDelta, "Base δ in [0.1, 2.0]")
	cmd.Flags().Float64("strength", constants.DefaultStrength, "Default strength")
	cmd.Flags().String("category", "", "Category (default: user_custom)")
	cmd.Flags().String("description", "", "Short description")
	cmd.Flags().String("use-case", "", "Intended use")
	return cmd
}

func newPresetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a user preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPresets(func(s store.PresetStore, _ constants.Backend) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to delete preset: %w", err)
				}
				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "name": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %q\n", args[0])
				return nil
			})
		},
	}
}

// presetConfigPath is shown in help output so users know where user presets go.
func presetConfigPath(cfg *config.GragConfig) string {
	dir, err := cfg.PresetDir()
	if err != nil {
		return "(unknown)"
	}
	return dir
}
