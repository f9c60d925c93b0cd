package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/internal/snapshot"
	"github.com/huangsam/chartkit/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// snapshotSetup loads minimal configuration needed for snapshot operations.
// Sources and charts are not validated, so a broken chart does not block
// store maintenance.
func snapshotSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backendStr := viper.GetString("snapshot-backend")
	connStr := viper.GetString("snapshot-db-connect")

	// Handle empty backend as NoneBackend
	var backend schema.DatabaseBackend
	if backendStr == "" {
		backend = schema.NoneBackend
	} else {
		backend = schema.DatabaseBackend(backendStr)
	}
	if _, ok := schema.ValidSnapshotBackends[backend]; !ok {
		return fmt.Errorf("invalid snapshot backend '%s'. must be sqlite, mysql, postgresql, none", backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = connStr
	return nil
}

// snapshotSetupWrapper wraps snapshotSetup to provide PreRunE for snapshot commands.
func snapshotSetupWrapper(_ *cobra.Command, _ []string) error {
	return snapshotSetup()
}

// snapshotCmd focused on snapshot store management.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage stored chart builds",
	Long: `Manage the snapshot store that keeps the chart definitions of past builds.

Every "chartkit build" and every server refresh stores one run when a
snapshot backend is configured. The server falls back to the latest run when
its data sources are unavailable at startup.

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show snapshot store statistics
  migrate - Run database schema migrations

Examples:
  # Check the default SQLite store
  chartkit snapshot status --snapshot-backend sqlite

  # Upgrade a Postgres store
  chartkit snapshot migrate --snapshot-backend postgresql --snapshot-db-connect "host=db dbname=charts"`,
}

// snapshotStatusCmd shows snapshot store status.
var snapshotStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display snapshot store statistics and connection details",
	Long: `Show the schema version, the number of stored runs and charts, the time of
the oldest and latest run, and the row count of every snapshot table.

Examples:
  chartkit snapshot status --snapshot-backend sqlite`,
	PreRunE: snapshotSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store, err := snapshot.NewStore(cfg.SnapshotBackend, cfg.SnapshotDBConnect)
		if err != nil {
			contract.LogFatal("Failed to open snapshot store", err)
		}
		defer func() { _ = store.Close() }()

		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get snapshot status", err)
		}
		snapshot.PrintSnapshotStatus(os.Stdout, status)
	},
}

// snapshotMigrateCmd runs database migrations for the snapshot store.
var snapshotMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the snapshot store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  chartkit snapshot migrate --snapshot-backend sqlite

  # Migrate to specific version
  chartkit snapshot migrate --snapshot-backend sqlite --target-version 2

  # Rollback everything
  chartkit snapshot migrate --snapshot-backend sqlite --target-version 0`,
	PreRunE: snapshotSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		result, err := snapshot.MigrateSnapshots(cfg.SnapshotBackend, cfg.SnapshotDBConnect, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		if !result.Changed {
			fmt.Printf("Snapshot schema already at version %d.\n", result.To)
			return
		}
		fmt.Printf("Migrated snapshot schema from version %d to %d.\n", result.From, result.To)
	},
}
