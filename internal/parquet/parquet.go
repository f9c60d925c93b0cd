// Package parquet provides data structures and functions for exporting built
// chart datasets to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/chartkit/schema"
	"github.com/parquet-go/parquet-go"
)

// ChartRow is a single bucket of one series of one chart.
type ChartRow struct {
	// Chart is the render anchor of the chart
	Chart string `parquet:"chart,snappy"`

	// ChartType is line, bar or pie
	ChartType string `parquet:"chart_type,snappy"`

	// Series is the dataset name
	Series string `parquet:"series,snappy"`

	// Position is the index of the bucket within its series
	Position int32 `parquet:"position,snappy"`

	// Key is the bucket key
	Key string `parquet:"key,snappy"`

	// Value is the aggregated bucket value
	Value float64 `parquet:"value,snappy"`

	// BuiltAt is when the chart was built (stored as TIMESTAMP with nanosecond precision)
	BuiltAt time.Time `parquet:"built_at,snappy"`
}

// ChartRows flattens chart definitions into rows, in chart, series and bucket order.
func ChartRows(defs []schema.ChartDefinition, builtAt time.Time) []ChartRow {
	var rows []ChartRow
	for _, def := range defs {
		for _, ds := range def.Datasets {
			for i, p := range ds.Points {
				rows = append(rows, ChartRow{
					Chart:     def.Spec.Name,
					ChartType: string(def.Spec.ChartType),
					Series:    ds.Name,
					Position:  int32(i),
					Key:       p.Key,
					Value:     p.Value,
					BuiltAt:   builtAt,
				})
			}
		}
	}
	return rows
}

// WriteChartRows writes rows to w as a Parquet file.
func WriteChartRows(w io.Writer, data []ChartRow) error {
	// The schema is derived from the ChartRow struct tags
	writer := parquet.NewGenericWriter[ChartRow](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteChartRowsParquet writes rows to a Parquet file at outputPath.
func WriteChartRowsParquet(data []ChartRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return WriteChartRows(file, data)
}

// ReadChartRowsParquet reads every row of a Parquet file written by WriteChartRowsParquet.
func ReadChartRowsParquet(path string) ([]ChartRow, error) {
	rows, err := parquet.ReadFile[ChartRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}
