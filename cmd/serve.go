package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/server"
	"github.com/huangsam/chartkit/internal/snapshot"
	"github.com/huangsam/chartkit/internal/source"
	"github.com/huangsam/chartkit/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// serveCmd serves the built charts over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured charts over HTTP.",
	Long: `Build all charts once and serve them as JSON.

Routes:
  GET /healthz              build status of the served charts
  GET /charts               summaries of all charts
  GET /charts/:name         one chart with its datasets (?live=true rebuilds it)

With --refresh the charts are rebuilt on a cron schedule. A failed rebuild
keeps serving the previous charts. When a snapshot backend is configured,
every build is stored and the latest stored run is served if the first build
fails.

Examples:
  # Serve on the default port
  chartkit serve

  # Rebuild every 15 minutes and keep snapshots in Postgres
  chartkit serve --refresh "*/15 * * * *" --snapshot-backend postgresql \
    --snapshot-db-connect "host=localhost dbname=charts"`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := executeServe(rootCtx); err != nil {
			contract.LogFatal("Cannot serve charts", err)
		}
	},
}

func executeServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := source.OpenRegistry(ctx, cfg.Sources, logger)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.SnapshotBackend != schema.NoneBackend {
		store, err := snapshot.NewStore(cfg.SnapshotBackend, cfg.SnapshotDBConnect)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, server.WithSnapshotStore(store))
	}
	srv := server.New(newBuilder(registry), cfg.Charts, opts...)

	if err := srv.Refresh(ctx); err != nil {
		if loadErr := srv.LoadSnapshot(ctx); loadErr != nil {
			if !errors.Is(loadErr, snapshot.ErrNoSnapshots) {
				logger.Warn("failed to load snapshot", zap.Error(loadErr))
			}
			return err
		}
	}

	if schedule := viper.GetString("refresh"); schedule != "" {
		if err := srv.Schedule(schedule); err != nil {
			return err
		}
	}

	return srv.Run(ctx, viper.GetString("addr"))
}
