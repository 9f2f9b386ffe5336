package main

import (
	"fmt"

	"github.com/nvandessel/grag/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the grag tools over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout exposing grag_resolve, grag_schedule,
grag_presets and grag_simulate, plus the grag://presets resource.

Logs go to stderr so they never interleave with the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "grag",
				Version:  version,
				Root:     root,
				Settings: cfg,
				Logger:   newLogger(cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
