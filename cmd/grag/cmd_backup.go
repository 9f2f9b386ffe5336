package main

import (
	"fmt"
	"time"

	"github.com/nvandessel/grag/internal/backup"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/store"
	"github.com/spf13/cobra"
)

// defaultKeepBackups is how many archives export keeps in the default directory.
const defaultKeepBackups = 10

func newPresetsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export user presets to a checksummed archive",
		Long: `Export every user preset to a compressed archive.

Without a path the archive is written to ~/.grag/backups and older
archives there are rotated (see --keep).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetInt("keep")

			path := ""
			dir := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				d, err := backup.DefaultDir()
				if err != nil {
					return err
				}
				dir = d
				path = backup.GeneratePath(dir, time.Now())
			}

			return withPresets(func(s store.PresetStore, _ constants.Backend) error {
				archive, err := backup.Export(cmd.Context(), s, path)
				if err != nil {
					return fmt.Errorf("failed to export presets: %w", err)
				}
				if dir != "" && keep > 0 {
					if err := backup.Rotate(dir, keep); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
					}
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"status":   "exported",
						"path":     path,
						"count":    archive.Header.Count,
						"checksum": archive.Header.Checksum,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d presets to %s\n", archive.Header.Count, path)
				return nil
			})
		},
	}
	cmd.Flags().Int("keep", defaultKeepBackups, "Archives to keep when writing to the default directory (0 keeps all)")
	return cmd
}

func newPresetsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import user presets from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := backup.ImportMerge
			if replace, _ := cmd.Flags().GetBool("replace"); replace {
				mode = backup.ImportReplace
			}

			return withPresets(func(s store.PresetStore, _ constants.Backend) error {
				result, err := backup.Import(cmd.Context(), s, args[0], mode)
				if err != nil {
					return fmt.Errorf("failed to import presets: %w", err)
				}

				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					return printJSON(cmd.OutOrStdout(), result)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Imported %d, skipped %d, failed %d\n", result.Imported, result.Skipped, result.Failed)
				for _, e := range result.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("replace", false, "Overwrite user presets that already exist")
	return cmd
}
