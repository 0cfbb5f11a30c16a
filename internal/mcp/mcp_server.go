// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// NewMCPServer initializes and configures the cardgen MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(catalog schema.Catalog, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Cardgen Datacard Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		catalog: catalog,
		mgr:     mgr,
	}

	s.AddTool(mcp.NewTool("inspect_datacard",
		mcp.WithDescription("Parse a Combine text datacard and return its bins, process columns and nuisance rows."),
		mcp.WithString("path", mcp.Description("Path to the datacard file."), mcp.Required()),
	), h.handleInspectDatacard)

	s.AddTool(mcp.NewTool("list_systematics",
		mcp.WithDescription("List the systematic uncertainties entering the hypothesis-test datacards."),
		mcp.WithString("remove", mcp.Description("Comma-separated nuisance tokens or glob patterns to drop from the list.")),
	), h.handleListSystematics)

	s.AddTool(mcp.NewTool("get_runs_status",
		mcp.WithDescription("Report the state of the run-tracking store and, optionally, every tracked run."),
		mcp.WithBoolean("include_runs", mcp.Description("Also return the tracked runs.")),
	), h.handleGetRunsStatus)

	return s
}

// StartMCPServer starts the cardgen MCP server on stdio.
func StartMCPServer(_ context.Context, catalog schema.Catalog, mgr contract.StoreManager) error {
	s := NewMCPServer(catalog, mgr)
	return server.ServeStdio(s)
}
