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

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full generator setup.
func cacheSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")

	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// No run tracking for cache commands
	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	common.CacheBackend = backend
	common.CacheDBConnect = connStr
	return nil
}

// cacheCmd focused on cache management.
//
// Note: Cache subcommands use minimal initialization (cacheSetup) instead of
// the full generatorSetup. This avoids validating generator inputs for
// simple cache operations.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the histogram read cache (improves performance)",
	Long: `Manage the cache of histograms read from the input plotters.

Cardgen caches every histogram directory it reads, keyed by file, size,
modification time and directory, so repeated hypothesis tests on the same
plotter skip the ROOT decoding.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached data

Examples:
  # Check cache status
  cardgen cache status

  # Clear cache after regenerating the plotters
  cardgen cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached histograms",
	Long: `Delete all cached histograms from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  # Clear SQLite cache (default)
  cardgen cache clear

  # Clear MySQL cache (set connection string via env variable)
  CARDGEN_CACHE_BACKEND=mysql CARDGEN_CACHE_DB_CONNECT="..." cardgen cache clear`,
	PreRunE: cacheSetup,
	Run: func(_ *cobra.Command, _ []string) {
		// the store holds the SQLite file open
		iocache.CloseStores()
		if err := iocache.ClearCache(common.CacheBackend, contract.GetCacheDBFilePath(), common.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the histogram cache.

Displays:
- Backend type and connection status
- Total number of cached directories
- Last and oldest cache entry timestamps
- Cache table size

Examples:
  # Check cache status
  cardgen cache status`,
	PreRunE: cacheSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetHistStore()
		if store == nil {
			iocache.PrintCacheStatus(os.Stdout, schema.CacheStatus{Backend: string(schema.NoneBackend)})
			return
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}
