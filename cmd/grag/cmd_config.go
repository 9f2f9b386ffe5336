package main

import (
	"fmt"

	"github.com/nvandessel/grag/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage grag configuration",
		Long: `View and modify grag configuration settings.

Configuration is stored in ~/.grag/config.yaml. GRAG_* environment
variables (and a .env file in the working directory) override it.

Examples:
  grag config list                             # Show all settings
  grag config get control.preset               # Get a specific setting
  grag config set control.preset "Paper: Balanced"
  grag config set presets.backend sqlite`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(cmd.OutOrStdout(), cfg)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Configuration (~/.grag/config.yaml):")
			fmt.Fprintln(w)
			t := newTable("KEY", "VALUE")
			for _, key := range config.Keys {
				value, _ := cfg.Get(key)
				t.add(key, valueOrDefault(fmt.Sprint(value), "(not set)"))
			}
			t.render(w)
			fmt.Fprintf(w, "\nUser presets: %s\n", presetConfigPath(cfg))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := cfg.Get(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return err
			}
			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if loaded, err := config.LoadFromFile(path); err == nil {
				cfg = loaded
			}

			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"status": "updated", "key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
