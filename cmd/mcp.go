package cmd

import (
	"github.com/huangsam/chartkit/internal/mcp"
	"github.com/huangsam/chartkit/internal/source"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the chartkit MCP server",
	Long:  `Launch an MCP server that allows AI agents to list, validate and build charts via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr so stdio stays clean for the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, err := source.OpenRegistry(rootCtx, cfg.Sources, logger)
		if err != nil {
			return err
		}
		defer func() { _ = registry.Close() }()
		return mcp.StartMCPServer(rootCtx, cfg, newBuilder(registry))
	},
}
