package cmd

import (
	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/outwriter"
	"github.com/spf13/cobra"
)

// validateCmd checks the configuration without querying any source.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file and list the charts it defines.",
	Long: `Run every chart's options through the validator and print a summary of the
resulting charts. No data source is opened.

The first violated rule of a chart is reported together with its position.

Examples:
  # Check the default .chartkit.yaml
  chartkit validate

  # Check another file and print JSON
  chartkit validate --config dashboards.yaml --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := outwriter.NewOutWriter().WriteChartSummaries(cfg.Charts, cfg); err != nil {
			contract.LogFatal("Cannot print chart summaries", err)
		}
	},
}
