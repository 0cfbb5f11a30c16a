package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/topljets/cardgen/internal/combine"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	catalog schema.Catalog
	mgr     contract.StoreManager
}

func (h *toolHandler) handleInspectDatacard(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	card, err := datacard.ParseFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse datacard: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(card, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListSystematics(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := h.catalog
	if remove := contract.SplitList(request.GetString("remove", "")); len(remove) > 0 {
		catalog = combine.RemoveNuisances(catalog, remove)
	}

	jsonData, _ := json.MarshalIndent(catalog, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetRunsStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var store contract.RunStore
	if h.mgr != nil {
		store = h.mgr.GetRunStore()
	}
	if store == nil {
		return mcp.NewToolResultError("run tracking is disabled"), nil
	}

	status, err := store.GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get run status: %v", err)), nil
	}

	out := struct {
		Status schema.RunStatus   `json:"status"`
		Runs   []schema.RunRecord `json:"runs,omitempty"`
	}{Status: status}
	if request.GetBool("include_runs", false) {
		if out.Runs, err = store.GetAllRuns(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
		}
	}

	jsonData, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
