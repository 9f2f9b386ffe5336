package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/store"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "grag",
		Short: "Group-relative attention guidance for diffusion editing models",
		Long: `grag resolves, previews and simulates GRAG attention schedules.

It turns a preset and strength (or explicit λ/δ values) into per-layer,
per-step and per-resolution modulation pairs, manages the preset catalog,
and runs a synthetic sampling loop to show how far a schedule moves the
output away from the unmodified model.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newResolveCmd(),
		newScheduleCmd(),
		newPresetsCmd(),
		newConfigCmd(),
		newSimulateCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "grag version %s\n", version)
			return nil
		},
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig loads the user configuration and validates it.
func loadConfig() (*config.GragConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a stderr logger at the configured level.
func newLogger(cfg *config.GragConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// openPresets opens the configured preset store. The caller must Close it.
func openPresets(cfg *config.GragConfig, logger *slog.Logger) (store.PresetStore, constants.Backend, error) {
	dir, err := cfg.PresetDir()
	if err != nil {
		return nil, "", fmt.Errorf("resolving preset directory: %w", err)
	}
	s, backend := store.Open(constants.Backend(cfg.Presets.Backend), dir, logger)
	return s, backend, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
