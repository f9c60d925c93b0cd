package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/parquet"
	"github.com/huangsam/chartkit/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleCharts() []schema.ChartDefinition {
	return []schema.ChartDefinition{
		{
			Spec: schema.ChartSpec{
				Title: "Signups", Name: "signups", ChartType: schema.LineChart,
				ReportType: schema.GroupByDate, GroupByField: "created_at", AggregateFunction: schema.CountFunction,
			},
			Datasets: []schema.Dataset{
				{Name: "Paid", Points: []schema.Point{{Key: "2024-01-01", Value: 2}, {Key: "2024-01-02", Value: 0.5}}},
				{Name: "Free", Points: []schema.Point{{Key: "2024-01-02", Value: 3}, {Key: "2024-01-03", Value: 1}}},
			},
		},
		{
			Spec: schema.ChartSpec{
				Title: "Revenue", Name: "revenue", ChartType: schema.PieChart,
				ReportType: schema.GroupByString, GroupByField: "country", AggregateFunction: schema.SumFunction, AggregateField: "total",
			},
			Datasets: []schema.Dataset{
				{Name: "Revenue", Points: []schema.Point{{Key: "BE", Value: 3}, {Key: "NL", Value: 15}}},
			},
		},
	}
}

func TestSeriesGrid(t *testing.T) {
	rows := seriesGrid(sampleCharts()[0])
	require.Len(t, rows, 3)

	assert.Equal(t, "2024-01-01", rows[0].key)
	assert.Equal(t, 2.0, *rows[0].values[0])
	assert.Nil(t, rows[0].values[1])

	assert.Equal(t, "2024-01-02", rows[1].key)
	assert.Equal(t, 0.5, *rows[1].values[0])
	assert.Equal(t, 3.0, *rows[1].values[1])

	assert.Equal(t, "2024-01-03", rows[2].key)
	assert.Nil(t, rows[2].values[0])
}

func TestWriteJSONResultsForCharts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSONResultsForCharts(&buf, sampleCharts()))

	var decoded []schema.ChartDefinition
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "signups", decoded[0].Spec.Name)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, decoded[0].Datasets[0].Keys())
	assert.Contains(t, buf.String(), `"chart_title": "Signups"`)
}

func TestWriteCSVResultsForCharts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSVResultsForCharts(&buf, sampleCharts(), createFormatter(1)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, []string{"chart", "chart_type", "series", "key", "value"}, records[0])
	assert.Equal(t, []string{"signups", "line", "Paid", "2024-01-02", "0.5"}, records[2])
	assert.Equal(t, []string{"revenue", "pie", "Revenue", "NL", "15.0"}, records[6])
}

func TestWriteXLSXResultsForCharts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeXLSXResultsForCharts(&buf, sampleCharts()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"signups", "revenue"}, f.GetSheetList())

	rows, err := f.GetRows("signups")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"key", "Paid", "Free"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "2"}, rows[1])
	assert.Equal(t, []string{"2024-01-02", "0.5", "3"}, rows[2])
	assert.Equal(t, "2024-01-03", rows[3][0])
	assert.Equal(t, "1", rows[3][2])

	rows, err = f.GetRows("revenue")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"key", "Revenue"}, {"BE", "3"}, {"NL", "15"}}, rows)
}

func TestSheetName(t *testing.T) {
	used := map[string]struct{}{}
	assert.Equal(t, "signups", sheetName("signups", 0, used))
	assert.Equal(t, "signups_2", sheetName("signups", 1, used))
	assert.Equal(t, schema.DefaultChartName, sheetName("", 2, used))

	long := strings.Repeat("a", 40)
	assert.Len(t, sheetName(long, 3, used), maxSheetNameLength)
	dup := sheetName(long, 4, used)
	assert.Len(t, dup, maxSheetNameLength)
	assert.True(t, strings.HasSuffix(dup, "_5"))
}

func TestWriteChartTables(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Width: 120, UseColors: false}
	require.NoError(t, writeChartTables(&buf, sampleCharts(), cfg, createFormatter(2)))

	out := buf.String()
	assert.Contains(t, out, "Signups signups (line, group_by_date by created_at, count)")
	assert.Contains(t, out, "Revenue revenue (pie, group_by_string by country, sum)")
	assert.Contains(t, out, "2024-01-03")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "15.00")
	assert.Contains(t, out, "-")
}

func TestPrintChartResultsToFiles(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		output schema.OutputMode
		check  func(t *testing.T, path string)
	}{
		{"json", schema.JSONOut, func(t *testing.T, path string) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, json.Valid(data))
		}},
		{"csv", schema.CSVOut, func(t *testing.T, path string) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), "chart,chart_type,series,key,value\n"))
		}},
		{"text", schema.TextOut, func(t *testing.T, path string) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "Built 2 charts in")
		}},
		{"parquet", schema.ParquetOut, func(t *testing.T, path string) {
			rows, err := parquet.ReadChartRowsParquet(path)
			require.NoError(t, err)
			assert.Len(t, rows, 6)
		}},
		{"xlsx", schema.XLSXOut, func(t *testing.T, path string) {
			f, err := excelize.OpenFile(path)
			require.NoError(t, err)
			defer func() { _ = f.Close() }()
			assert.Len(t, f.GetSheetList(), 2)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "charts."+string(tt.output))
			cfg := &contract.Config{Output: tt.output, OutputFile: path, Precision: 1, Width: 100}
			require.NoError(t, NewOutWriter().WriteCharts(sampleCharts(), cfg, time.Second))
			tt.check(t, path)
		})
	}
}

func TestPrintChartResultsBinaryNeedsFile(t *testing.T) {
	for _, mode := range []schema.OutputMode{schema.ParquetOut, schema.XLSXOut} {
		err := PrintChartResults(sampleCharts(), &contract.Config{Output: mode}, time.Second)
		require.ErrorIs(t, err, errBinaryToStdout)
	}
}

func TestPrintChartSummaries(t *testing.T) {
	specs := []schema.ChartSpec{sampleCharts()[0].Spec, sampleCharts()[1].Spec}

	t.Run("table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "summary.txt")
		require.NoError(t, NewOutWriter().WriteChartSummaries(specs, &contract.Config{OutputFile: path}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "sum(total)")
		assert.Contains(t, string(data), "signups")
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "summary.json")
		require.NoError(t, PrintChartSummaries(specs, &contract.Config{Output: schema.JSONOut, OutputFile: path}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var decoded []schema.ChartSpec
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "revenue", decoded[1].Name)
	})
}

func TestGetMaxTableKeyWidth(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		series int
		want   int
	}{
		{"wide terminal is capped", 300, 1, 70},
		{"narrow terminal has a floor", 40, 3, 15},
		{"fits between", 100, 2, 62},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetMaxTableKeyWidth(&contract.Config{Width: tt.width}, tt.series))
		})
	}
}
