// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteCharts prints built chart definitions using the configured output format.
func (ow *OutWriter) WriteCharts(defs []schema.ChartDefinition, cfg *contract.Config, duration time.Duration) error {
	return PrintChartResults(defs, cfg, duration)
}

// WriteChartSummaries prints the configured charts without building them.
func (ow *OutWriter) WriteChartSummaries(specs []schema.ChartSpec, cfg *contract.Config) error {
	return PrintChartSummaries(specs, cfg)
}
