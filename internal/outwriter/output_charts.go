package outwriter

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/parquet"
	"github.com/huangsam/chartkit/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// errBinaryToStdout is returned when a binary format has no output file.
var errBinaryToStdout = errors.New("binary output requires an output file")

// PrintChartResults outputs the built charts, dispatching based on the output format configured.
func PrintChartResults(defs []schema.ChartDefinition, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := createFormatter(cfg.Precision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForCharts(defs, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForCharts(defs, cfg, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := printParquetResultsForCharts(defs, cfg); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	case schema.XLSXOut:
		if err := printXLSXResultsForCharts(defs, cfg); err != nil {
			return fmt.Errorf("error writing XLSX output: %w", err)
		}
	default:
		// Default to human-readable tables
		if err := printChartTables(defs, cfg, fmtFloat, duration); err != nil {
			return fmt.Errorf("error writing chart table output: %w", err)
		}
	}
	return nil
}

// printJSONResultsForCharts handles opening the file and calling the JSON writer.
func printJSONResultsForCharts(defs []schema.ChartDefinition, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSONResultsForCharts(w, defs)
	}, "Wrote JSON chart results")
}

// printCSVResultsForCharts handles opening the file and calling the CSV writer.
func printCSVResultsForCharts(defs []schema.ChartDefinition, cfg *contract.Config, fmtFloat func(float64) string) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVResultsForCharts(w, defs, fmtFloat)
	}, "Wrote CSV chart results")
}

// printParquetResultsForCharts writes one row per bucket to a Parquet file.
func printParquetResultsForCharts(defs []schema.ChartDefinition, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return errBinaryToStdout
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return parquet.WriteChartRows(w, parquet.ChartRows(defs, time.Now()))
	}, "Wrote Parquet chart results")
}

// printXLSXResultsForCharts writes one worksheet per chart.
func printXLSXResultsForCharts(defs []schema.ChartDefinition, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return errBinaryToStdout
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeXLSXResultsForCharts(w, defs)
	}, "Wrote XLSX chart results")
}

// printChartTables prints one table per chart with a column per series.
func printChartTables(defs []schema.ChartDefinition, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		if err := writeChartTables(w, defs, cfg, fmtFloat); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "Built %d charts in %v. Snapshot backend: %s\n", len(defs), duration, cfg.SnapshotBackend)
		return err
	}, "Wrote chart tables")
}

func writeChartTables(w io.Writer, defs []schema.ChartDefinition, cfg *contract.Config, fmtFloat func(float64) string) error {
	title := fmt.Sprint
	if cfg.UseColors {
		title = color.New(color.FgCyan, color.Bold).SprintFunc()
	}

	for _, def := range defs {
		if _, err := fmt.Fprintf(w, "%s %s\n", title(def.Spec.Title), contract.DescribeOptions(def.Spec)); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		headers := []string{"Key"}
		for _, ds := range def.Datasets {
			headers = append(headers, ds.Name)
		}
		table.Header(headers)
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		keyWidth := GetMaxTableKeyWidth(cfg, len(def.Datasets))
		var data [][]string
		for _, row := range seriesGrid(def) {
			line := []string{contract.TruncateKey(row.key, keyWidth)}
			for _, v := range row.values {
				if v == nil {
					line = append(line, "-")
					continue
				}
				line = append(line, fmtFloat(*v))
			}
			data = append(data, line)
		}

		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

// PrintChartSummaries outputs the configured charts without building them.
func PrintChartSummaries(specs []schema.ChartSpec, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, specs)
		}, "Wrote JSON chart summaries")
	}

	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		table := tablewriter.NewWriter(w)
		table.Header([]string{"#", "Name", "Type", "Report", "Source", "Aggregate", "Series"})

		var data [][]string
		for i, spec := range specs {
			aggregate := string(spec.AggregateFunction)
			if spec.AggregateField != "" {
				aggregate = fmt.Sprintf("%s(%s)", spec.AggregateFunction, spec.AggregateField)
			}
			data = append(data, []string{
				strconv.Itoa(i + 1),
				spec.Name,
				string(spec.ChartType),
				string(spec.ReportType),
				spec.DataSource,
				aggregate,
				strconv.Itoa(max(len(spec.Conditions), 1)),
			})
		}

		if err := table.Bulk(data); err != nil {
			return err
		}
		return table.Render()
	}, "Wrote chart summaries")
}
