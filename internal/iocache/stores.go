package iocache

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManagerImpl{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global manager. An empty backend leaves the
// corresponding store disabled.
func InitStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, runsBackend schema.DatabaseBackend, runsConnStr string) error {
	var initErr error

	initOnce.Do(func() {
		var histStore contract.CacheStore
		if cacheBackend != "" {
			s, err := NewCacheStore(histCacheTable, cacheBackend, cacheConnStr)
			if err != nil {
				initErr = fmt.Errorf("failed to initialize histogram cache: %w", err)
				return
			}
			histStore = s
		}

		var runStore contract.RunStore
		if runsBackend != "" {
			s, err := NewRunStore(runsBackend, runsConnStr)
			if err != nil {
				if histStore != nil {
					_ = histStore.Close()
				}
				initErr = fmt.Errorf("failed to initialize run store: %w", err)
				return
			}
			runStore = s
		}

		Manager.Lock()
		Manager.hist = histStore
		Manager.runs = runStore
		Manager.Unlock()
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.hist != nil {
			_ = Manager.hist.Close()
		}
		if Manager.runs != nil {
			_ = Manager.runs.Close()
		}
	})
}

// ClearCache clears the histogram cache. The SQLite file is deleted; on
// server backends the table is dropped.
func ClearCache(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	return clearTables(backend, dbFilePath, connStr, histCacheTable)
}

// ClearRuns clears the run-tracking tables.
func ClearRuns(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	return clearTables(backend, dbFilePath, connStr, runsTable, cardYieldsTable, "schema_migrations")
}

func clearTables(backend schema.DatabaseBackend, dbFilePath, connStr string, tables ...string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		for _, table := range tables {
			if err := dropSQLTable(backend, connStr, table); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

// dropSQLTable connects to the SQL database and drops the table if it exists.
func dropSQLTable(backend schema.DatabaseBackend, connStr, tableName string) error {
	driverName, err := driverFor(backend)
	if err != nil {
		return err
	}
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}
	if _, err := db.Exec("DROP TABLE IF EXISTS " + quoteTableName(tableName, backend)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}
