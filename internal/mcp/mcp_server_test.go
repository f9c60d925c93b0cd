package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/huangsam/chartkit/internal/contract"
	mcp_internal "github.com/huangsam/chartkit/internal/mcp"
	"github.com/huangsam/chartkit/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBuilder records the spec it was asked to build.
type fakeBuilder struct {
	err  error
	last schema.ChartSpec
}

func (f *fakeBuilder) BuildChart(_ context.Context, spec schema.ChartSpec) (schema.ChartDefinition, error) {
	f.last = spec
	if f.err != nil {
		return schema.ChartDefinition{}, f.err
	}
	return schema.ChartDefinition{
		Spec:     spec,
		Datasets: []schema.Dataset{{Name: "Revenue", Points: []schema.Point{{Key: "2024-01", Value: 12.5}}}},
	}, nil
}

func testConfig() *contract.Config {
	days := 30
	return &contract.Config{
		Charts: []schema.ChartSpec{
			{
				Title:             "Revenue",
				Name:              "revenue",
				ChartType:         schema.LineChart,
				ReportType:        schema.GroupByDate,
				DataSource:        "orders",
				GroupByPeriod:     schema.MonthPeriod,
				AggregateFunction: schema.SumFunction,
				AggregateField:    "total",
				FilterDays:        &days,
				Conditions:        []schema.SeriesCondition{{Name: "Revenue"}},
			},
			{
				Title:             "Status",
				Name:              "status",
				ChartType:         schema.PieChart,
				ReportType:        schema.GroupByString,
				DataSource:        "orders",
				AggregateFunction: schema.CountFunction,
				Conditions:        []schema.SeriesCondition{{Name: "Status"}},
			},
		},
	}
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestListCharts(t *testing.T) {
	s := mcp_internal.NewMCPServer(testConfig(), &fakeBuilder{})

	res := callTool(t, s, "list_charts", nil)
	assert.False(t, res.IsError)

	var listing []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &listing))
	require.Len(t, listing, 2)
	assert.Equal(t, "revenue", listing[0]["chart_name"])
	assert.Equal(t, "sum(total)", listing[0]["aggregate"])
	assert.Equal(t, "month", listing[0]["group_by_period"])
	assert.Equal(t, "count", listing[1]["aggregate"])
	assert.Equal(t, []any{"Status"}, listing[1]["series"])
}

func TestBuildChart(t *testing.T) {
	builder := &fakeBuilder{}
	s := mcp_internal.NewMCPServer(testConfig(), builder)

	t.Run("configured chart", func(t *testing.T) {
		res := callTool(t, s, "build_chart", map[string]any{"name": "revenue"})
		assert.False(t, res.IsError)

		var def schema.ChartDefinition
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &def))
		assert.Equal(t, "revenue", def.Spec.Name)
		require.Len(t, def.Datasets, 1)
		assert.Equal(t, []float64{12.5}, def.Datasets[0].Values())
		require.NotNil(t, builder.last.FilterDays)
		assert.Equal(t, 30, *builder.last.FilterDays)
	})

	t.Run("overrides", func(t *testing.T) {
		res := callTool(t, s, "build_chart", map[string]any{"name": "revenue", "top_results": 3.0, "filter_days": 0.0})
		assert.False(t, res.IsError)
		assert.Equal(t, 3, builder.last.TopResults)
		require.NotNil(t, builder.last.FilterDays)
		assert.Equal(t, 0, *builder.last.FilterDays)
	})

	t.Run("overrides do not leak into config", func(t *testing.T) {
		cfg := testConfig()
		s := mcp_internal.NewMCPServer(cfg, builder)
		callTool(t, s, "build_chart", map[string]any{"name": "revenue", "filter_days": 7.0})
		assert.Equal(t, 30, *cfg.Charts[0].FilterDays)
	})

	t.Run("missing name", func(t *testing.T) {
		res := callTool(t, s, "build_chart", map[string]any{})
		assert.True(t, res.IsError)
	})

	t.Run("unknown chart", func(t *testing.T) {
		res := callTool(t, s, "build_chart", map[string]any{"name": "nope"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), `chart "nope" is not configured`)
	})

	t.Run("invalid overrides", func(t *testing.T) {
		res := callTool(t, s, "build_chart", map[string]any{"name": "revenue", "top_results": -2.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "top_results must be a positive integer")

		res = callTool(t, s, "build_chart", map[string]any{"name": "revenue", "filter_days": -5.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "filter_days must be a non-negative integer")
	})

	t.Run("build error", func(t *testing.T) {
		s := mcp_internal.NewMCPServer(testConfig(), &fakeBuilder{err: errors.New("connection refused")})
		res := callTool(t, s, "build_chart", map[string]any{"name": "status"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "build failed: connection refused")
	})
}

func TestValidateChart(t *testing.T) {
	s := mcp_internal.NewMCPServer(testConfig(), &fakeBuilder{})

	t.Run("valid options", func(t *testing.T) {
		res := callTool(t, s, "validate_chart", map[string]any{
			"options": `{"chart_title": "New Users", "report_type": "group_by_date", "data_source": "users",
				"group_by_field": "created_at", "group_by_period": "week", "chart_type": "line"}`,
		})
		assert.False(t, res.IsError)

		var spec schema.ChartSpec
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &spec))
		assert.Equal(t, "new_users", spec.Name)
		assert.Equal(t, schema.CountFunction, spec.AggregateFunction)
		assert.Equal(t, schema.WeekPeriod, spec.GroupByPeriod)
	})

	t.Run("rule violation", func(t *testing.T) {
		res := callTool(t, s, "validate_chart", map[string]any{
			"options": `{"chart_title": "New Users", "report_type": "group_by_color"}`,
		})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "report_type must be group_by_date, group_by_string or group_by_relationship")
	})

	t.Run("not json", func(t *testing.T) {
		res := callTool(t, s, "validate_chart", map[string]any{"options": "chart_title=x"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "options must be a JSON object")
	})
}
