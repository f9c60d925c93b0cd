package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/huangsam/chartkit/schema"
	"github.com/xuri/excelize/v2"
)

// maxSheetNameLength is the longest worksheet name Excel accepts.
const maxSheetNameLength = 31

// gridRow is one bucket key with the value of each series, nil where a series lacks the key.
type gridRow struct {
	key    string
	values []*float64
}

// seriesGrid lines the datasets of a chart up by key.
// Keys keep their first-seen order across datasets.
func seriesGrid(def schema.ChartDefinition) []gridRow {
	index := make(map[string]int)
	var rows []gridRow
	for col, ds := range def.Datasets {
		for _, p := range ds.Points {
			i, ok := index[p.Key]
			if !ok {
				i = len(rows)
				index[p.Key] = i
				rows = append(rows, gridRow{key: p.Key, values: make([]*float64, len(def.Datasets))})
			}
			v := p.Value
			rows[i].values[col] = &v
		}
	}
	return rows
}

// writeJSONResultsForCharts marshals the chart definitions to JSON and writes them.
func writeJSONResultsForCharts(w io.Writer, defs []schema.ChartDefinition) error {
	return writeJSON(w, defs)
}

// writeCSVResultsForCharts writes one line per chart, series and bucket.
func writeCSVResultsForCharts(w io.Writer, defs []schema.ChartDefinition, fmtFloat func(float64) string) error {
	header := []string{"chart", "chart_type", "series", "key", "value"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, def := range defs {
			for _, ds := range def.Datasets {
				for _, p := range ds.Points {
					row := []string{def.Spec.Name, string(def.Spec.ChartType), ds.Name, p.Key, fmtFloat(p.Value)}
					if err := cw.Write(row); err != nil {
						return fmt.Errorf("failed to write CSV row: %w", err)
					}
				}
			}
		}
		return nil
	})
}

// writeXLSXResultsForCharts writes a workbook with one sheet per chart:
// a key column followed by one column per series.
func writeXLSXResultsForCharts(w io.Writer, defs []schema.ChartDefinition) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetList()[0]
	used := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		sheet := sheetName(def.Spec.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
		}

		header := []any{"key"}
		for _, ds := range def.Datasets {
			header = append(header, ds.Name)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of sheet %q: %w", sheet, err)
		}

		for r, row := range seriesGrid(def) {
			cells := []any{row.key}
			for _, v := range row.values {
				if v == nil {
					cells = append(cells, nil)
					continue
				}
				cells = append(cells, *v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return fmt.Errorf("failed to write row %d of sheet %q: %w", r+2, sheet, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetName fits a chart name into a unique worksheet name.
func sheetName(name string, i int, used map[string]struct{}) string {
	if name == "" {
		name = schema.DefaultChartName
	}
	if len(name) > maxSheetNameLength {
		name = name[:maxSheetNameLength]
	}
	if _, dup := used[name]; dup {
		suffix := fmt.Sprintf("_%d", i+1)
		name = name[:min(len(name), maxSheetNameLength-len(suffix))] + suffix
	}
	used[name] = struct{}{}
	return name
}
