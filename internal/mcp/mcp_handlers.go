package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	cfg     *contract.Config
	builder ChartBuilder
}

// chartListing is one entry of the list_charts result.
type chartListing struct {
	Name       string             `json:"chart_name"`
	Title      string             `json:"chart_title"`
	ChartType  schema.ChartType   `json:"chart_type"`
	ReportType schema.ReportType  `json:"report_type"`
	DataSource string             `json:"data_source"`
	Aggregate  string             `json:"aggregate"`
	Series     []string           `json:"series"`
	Period     schema.GroupPeriod `json:"group_by_period,omitempty"`
}

func (h *toolHandler) handleListCharts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing := make([]chartListing, 0, len(h.cfg.Charts))
	for _, spec := range h.cfg.Charts {
		entry := chartListing{
			Name:       spec.Name,
			Title:      spec.Title,
			ChartType:  spec.ChartType,
			ReportType: spec.ReportType,
			DataSource: spec.DataSource,
			Aggregate:  string(spec.AggregateFunction),
			Period:     spec.GroupByPeriod,
		}
		if spec.AggregateField != "" {
			entry.Aggregate = fmt.Sprintf("%s(%s)", spec.AggregateFunction, spec.AggregateField)
		}
		for _, cond := range spec.Conditions {
			entry.Series = append(entry.Series, cond.Name)
		}
		listing = append(listing, entry)
	}

	jsonData, _ := json.MarshalIndent(listing, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleBuildChart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec, ok := h.cfg.FindChart(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("chart %q is not configured", name)), nil
	}

	if n := request.GetInt("top_results", 0); n != 0 {
		if n < 0 {
			return mcp.NewToolResultError("top_results must be a positive integer"), nil
		}
		spec.TopResults = n
	}
	if days := request.GetInt("filter_days", -1); days != -1 {
		if days < 0 {
			return mcp.NewToolResultError("filter_days must be a non-negative integer"), nil
		}
		spec.FilterDays = &days
	}

	def, err := h.builder.BuildChart(ctx, spec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(def, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleValidateChart(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("options")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var options map[string]any
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("options must be a JSON object: %v", err)), nil
	}

	spec, err := contract.ValidateChartOptions(options)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	jsonData, _ := json.MarshalIndent(spec, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
