package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/iocache"
	"github.com/topljets/cardgen/schema"
)

// runsBackendConfig reads and validates the run-tracking backend settings.
// An empty backend means tracking is disabled.
func runsBackendConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.NoneBackend
	if b := viper.GetString("runs-backend"); b != "" {
		backend = schema.DatabaseBackend(b)
	}
	connStr := viper.GetString("runs-db-connect")

	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run-store operations.
func runsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackendConfig()
	if err != nil {
		return err
	}

	// No histogram cache for runs commands
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run tracking: %w", err)
	}

	common.RunsBackend = backend
	common.RunsDBConnect = connStr
	common.OutputFile = viper.GetString("output-file")
	return nil
}

// runsMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT initialize stores or create tables,
// allowing migrations to run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackendConfig()
	if err != nil {
		return err
	}
	common.RunsBackend = backend
	common.RunsDBConnect = connStr
	return nil
}

// runsCmd focused on run-tracking data management.
//
// Note: Runs subcommands use minimal initialization (runsSetup) instead of
// the full generatorSetup. This avoids validating generator inputs for
// simple store operations.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the history of generated datacards",
	Long: `Manage the record of generator runs.

When enabled with --runs-backend, every hypotest and workspace run is tracked:
- Run metadata (command, output directory, configuration, duration)
- The observed and expected yields of every card written

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show run tracking statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  cardgen runs status --runs-backend sqlite

  # Export for analysis in pandas/DuckDB
  cardgen runs export --runs-backend sqlite --output-file runs`,
}

// runsClearCmd clears the run-tracking data.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked runs and card yields",
	Long: `Delete all stored runs and card yields.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  cardgen runs export --output-file backup
  cardgen runs clear`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(common.RunsBackend, contract.GetRunsDBFilePath(), common.RunsDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsStatusCmd shows run-tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show detailed information about the run-tracking store.

Displays:
- Backend type and connection status
- Total number of runs and cards written
- Last and oldest run timestamps
- Database table sizes

Examples:
  # Check run tracking status
  cardgen runs status`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetRunStore()
		if store == nil {
			iocache.PrintRunStatus(os.Stdout, schema.RunStatus{Backend: string(schema.NoneBackend)})
			return
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports run-tracking data to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked runs to Parquet for BI tools and analytics",
	Long: `Export all tracked data to Parquet format for use with analytics tools.

Exports two datasets:
- <output-file>.runs.parquet - metadata about each generator run
- <output-file>.card_yields.parquet - observed and expected yields per card

Requires: --output-file parameter

Examples:
  # Export all data
  cardgen runs export --output-file cardgen-data

  # Use with DuckDB for analysis
  duckdb -c "SELECT * FROM read_parquet('cardgen-data.card_yields.parquet') LIMIT 10"`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExportRuns(os.Stdout, iocache.Manager.GetRunStore(), common.OutputFile); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run-tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  cardgen runs migrate --runs-backend sqlite

  # Rollback to initial state
  cardgen runs migrate --runs-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(os.Stdout, common.RunsBackend, common.RunsDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
