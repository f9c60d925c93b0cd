package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/chartkit/core"
	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/outwriter"
	"github.com/huangsam/chartkit/internal/snapshot"
	"github.com/huangsam/chartkit/internal/source"
	"github.com/huangsam/chartkit/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// buildCmd builds every configured chart and writes the datasets.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the configured charts and write their datasets.",
	Long: `Query each chart's data source, bucket and aggregate the records, and write
one ordered dataset per series.

Charts are read from the "charts" list of the config file. Each chart is built
independently; a chart whose data source is unknown yields empty datasets
unless --strict is set.

When a snapshot backend is configured, the built definitions are also stored
as a run that "chartkit serve" can fall back to.

Examples:
  # Build all charts as tables
  chartkit build

  # Build two charts as JSON
  chartkit build --chart signups --chart revenue --output json

  # Write a workbook with one sheet per chart
  chartkit build --output xlsx --output-file charts.xlsx

  # Keep a history of builds in SQLite
  chartkit build --snapshot-backend sqlite`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := executeBuild(rootCtx); err != nil {
			contract.LogFatal("Cannot build charts", err)
		}
	},
}

func executeBuild(ctx context.Context) error {
	specs, err := selectCharts(cfg.Charts, viper.GetStringSlice("chart"))
	if err != nil {
		return err
	}

	registry, err := source.OpenRegistry(ctx, cfg.Sources, logger)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	start := time.Now()
	defs, err := newBuilder(registry).Build(ctx, specs...)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	if err := saveSnapshot(ctx, start, defs); err != nil {
		contract.LogWarn("Failed to save snapshot", err)
	}

	return outwriter.NewOutWriter().WriteCharts(defs, cfg, duration)
}

// newBuilder creates a chart builder over registry honoring --strict.
func newBuilder(registry *source.Registry) *core.Builder {
	opts := []core.Option{core.WithLogger(logger)}
	if cfg.Strict {
		opts = append(opts, core.WithStrictSources())
	}
	return core.NewBuilder(registry, opts...)
}

// selectCharts keeps the named charts in config order. No names keeps all.
func selectCharts(specs []schema.ChartSpec, names []string) ([]schema.ChartSpec, error) {
	if len(names) == 0 {
		return specs, nil
	}
	for _, name := range names {
		if !slices.ContainsFunc(specs, func(s schema.ChartSpec) bool { return s.Name == name }) {
			return nil, fmt.Errorf("chart %q is not configured", name)
		}
	}
	var selected []schema.ChartSpec
	for _, spec := range specs {
		if slices.Contains(names, spec.Name) {
			selected = append(selected, spec)
		}
	}
	return selected, nil
}

func saveSnapshot(ctx context.Context, builtAt time.Time, defs []schema.ChartDefinition) error {
	if cfg.SnapshotBackend == schema.NoneBackend {
		return nil
	}
	store, err := snapshot.NewStore(cfg.SnapshotBackend, cfg.SnapshotDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runID := snapshot.NewRunID()
	if err := store.SaveRun(ctx, runID, builtAt, defs); err != nil {
		return err
	}
	logger.Info("saved snapshot", zap.String("run_id", runID), zap.Int("charts", len(defs)))
	return nil
}
