package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topljets/cardgen/internal/iocache"
	"github.com/topljets/cardgen/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the cardgen MCP server",
	Long:  `Launch an MCP server that allows AI agents to inspect datacards, the systematics catalog and tracked runs via standard tools.`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		// Nothing is printed here: stdio carries the protocol.
		backend, connStr, err := runsBackendConfig()
		if err != nil {
			return err
		}
		if err := iocache.InitStores("", "", backend, connStr); err != nil {
			return fmt.Errorf("failed to initialize run tracking: %w", err)
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		return mcp.StartMCPServer(rootCtx, catalog, iocache.Manager)
	},
}
