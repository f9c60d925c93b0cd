package server

import (
	"time"

	"github.com/huangsam/chartkit/schema"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports whether charts have been built.
type HealthResponse struct {
	Status    string    `json:"status"`
	Charts    int       `json:"charts"`
	RunID     string    `json:"run_id,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// ChartSummary describes one cached chart without its datasets.
type ChartSummary struct {
	Name       string           `json:"chart_name"`
	Title      string           `json:"chart_title"`
	ChartType  schema.ChartType `json:"chart_type"`
	DataSource string           `json:"data_source"`
	Series     []string         `json:"series"`
	Buckets    int              `json:"buckets"`
}

// ChartsResponse lists the cached charts of the current run.
type ChartsResponse struct {
	RunID   string         `json:"run_id"`
	BuiltAt time.Time      `json:"built_at"`
	Charts  []ChartSummary `json:"charts"`
}

func summarize(def schema.ChartDefinition) ChartSummary {
	summary := ChartSummary{
		Name:       def.Spec.Name,
		Title:      def.Spec.Title,
		ChartType:  def.Spec.ChartType,
		DataSource: def.Spec.DataSource,
		Series:     make([]string, 0, len(def.Datasets)),
	}
	for _, ds := range def.Datasets {
		summary.Series = append(summary.Series, ds.Name)
		summary.Buckets = max(summary.Buckets, ds.Len())
	}
	return summary
}
