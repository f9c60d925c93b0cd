// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ChartBuilder builds a single chart definition.
type ChartBuilder interface {
	BuildChart(ctx context.Context, spec schema.ChartSpec) (schema.ChartDefinition, error)
}

// NewMCPServer initializes and configures the chartkit MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(cfg *contract.Config, builder ChartBuilder) *server.MCPServer {
	s := server.NewMCPServer(
		"Chartkit Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		cfg:     cfg,
		builder: builder,
	}

	// --- 1. Tool: list_charts ---
	s.AddTool(mcp.NewTool("list_charts",
		mcp.WithDescription("List the configured charts with their report type, data source and series."),
	), h.handleListCharts)

	// --- 2. Tool: build_chart ---
	s.AddTool(mcp.NewTool("build_chart",
		mcp.WithDescription("Build a configured chart and return its datasets as ordered key/value points."),
		mcp.WithString("name", mcp.Description("The chart name as returned by list_charts."), mcp.Required()),
		mcp.WithNumber("top_results", mcp.Description("Keep only the N largest buckets (overrides the chart option).")),
		mcp.WithNumber("filter_days", mcp.Description("Only include records from the last N days (overrides the chart option).")),
	), h.handleBuildChart)

	// --- 3. Tool: validate_chart ---
	s.AddTool(mcp.NewTool("validate_chart",
		mcp.WithDescription("Validate chart options and return the normalized chart spec."),
		mcp.WithString("options", mcp.Description("Chart options as a JSON object, e.g. {\"chart_title\": \"Orders\", ...}."), mcp.Required()),
	), h.handleValidateChart)

	return s
}

// StartMCPServer starts the chartkit MCP server on stdio.
func StartMCPServer(_ context.Context, cfg *contract.Config, builder ChartBuilder) error {
	s := NewMCPServer(cfg, builder)
	return server.ServeStdio(s)
}
