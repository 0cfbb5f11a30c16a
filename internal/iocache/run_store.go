package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// Table names for run tracking.
const (
	runsTable       = "cardgen_runs"
	cardYieldsTable = "cardgen_card_yields"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetRunsDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

// createRunTables creates the run tracking tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{cardYieldsTable, getCreateCardYieldsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for cardgen_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_uuid VARCHAR(36) NOT NULL,
				command VARCHAR(32) NOT NULL,
				output_dir VARCHAR(512) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				total_cards INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				run_uuid TEXT NOT NULL,
				command TEXT NOT NULL,
				output_dir TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				total_cards INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_uuid TEXT NOT NULL,
				command TEXT NOT NULL,
				output_dir TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_cards INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateCardYieldsQuery returns the CREATE TABLE query for cardgen_card_yields.
func getCreateCardYieldsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(cardYieldsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				card VARCHAR(255) NOT NULL,
				category VARCHAR(128) NOT NULL,
				process VARCHAR(128) NOT NULL,
				proc_index INT NOT NULL,
				yield DOUBLE NOT NULL,
				recorded_at DATETIME(6) NOT NULL,
				PRIMARY KEY (run_id, card, process)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				card TEXT NOT NULL,
				category TEXT NOT NULL,
				process TEXT NOT NULL,
				proc_index INT NOT NULL,
				yield DOUBLE PRECISION NOT NULL,
				recorded_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (run_id, card, process)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				card TEXT NOT NULL,
				category TEXT NOT NULL,
				process TEXT NOT NULL,
				proc_index INTEGER NOT NULL,
				yield REAL NOT NULL,
				recorded_at TEXT NOT NULL,
				PRIMARY KEY (run_id, card, process)
			);
		`, quotedTableName)
	}
}

// BeginRun creates a new run and returns its ID.
func (rs *RunStoreImpl) BeginRun(runUUID, command, outputDir string, startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	args := []any{runUUID, command, outputDir, formatTime(startTime, rs.backend), string(configJSON)}

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, command, output_dir, start_time, config_params) VALUES ($1, $2, $3, $4, $5) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, args...).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, command, output_dir, start_time, config_params) VALUES (?, ?, ?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, args...)
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// EndRun stores the end time, duration and card count of a run.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, totalCards int) error {
	if rs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	row := rs.db.QueryRow(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, placeholder(rs.backend, 1)), runID)
	startTime, err := scanTime(row, rs.backend)
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	query := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_cards = %s WHERE run_id = %s`,
		quotedTableName, placeholder(rs.backend, 1), placeholder(rs.backend, 2), placeholder(rs.backend, 3), placeholder(rs.backend, 4))
	if _, err := rs.db.Exec(query, formatTime(endTime, rs.backend), durationMs, totalCards, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RecordCardYields stores one row per process column of a card.
func (rs *RunStoreImpl) RecordCardYields(runID int64, card schema.CardSummary) error {
	if rs.db == nil {
		return nil
	}

	ph := make([]any, 7)
	for i := range ph {
		ph[i] = placeholder(rs.backend, i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, card, category, process, proc_index, yield, recorded_at) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		append([]any{quoteTableName(cardYieldsTable, rs.backend)}, ph...)...)

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	now := formatTime(time.Now(), rs.backend)
	for _, p := range card.Processes {
		if _, err := tx.Exec(query, runID, card.Card, card.Category, p.Name, p.Index, p.Yield, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert yield of %s in %s: %w", p.Name, card.Card, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns))
		var err error
		status.LastRunID, status.LastRunTime, err = scanIDAndTime(row, rs.backend)
		if err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}

		row = rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns))
		if status.OldestRunTime, err = scanTime(row, rs.backend); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}

		row = rs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(total_cards), 0) FROM %s", quotedRuns))
		if err := row.Scan(&status.TotalCards); err != nil {
			return status, fmt.Errorf("failed to get total cards: %w", err)
		}
	}

	for _, table := range []string{runsTable, cardYieldsTable} {
		var count int64
		row := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves every run ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, run_uuid, command, output_dir, start_time, end_time, run_duration_ms, total_cards, config_params
		FROM %s ORDER BY run_id`, quoteTableName(runsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var r schema.RunRecord
		if rs.backend == schema.SQLiteBackend {
			var start string
			var end *string
			if err := rows.Scan(&r.RunID, &r.RunUUID, &r.Command, &r.OutputDir, &start, &end, &r.RunDurationMs, &r.TotalCards, &r.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			if r.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if end != nil {
				t, err := time.Parse(time.RFC3339Nano, *end)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				r.EndTime = &t
			}
		} else if err := rows.Scan(&r.RunID, &r.RunUUID, &r.Command, &r.OutputDir, &r.StartTime, &r.EndTime, &r.RunDurationMs, &r.TotalCards, &r.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllCardYields retrieves every yield ordered by run, card and column.
func (rs *RunStoreImpl) GetAllCardYields() ([]schema.CardYieldRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, card, category, process, proc_index, yield, recorded_at
		FROM %s ORDER BY run_id, card, proc_index`, quoteTableName(cardYieldsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query card yields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.CardYieldRecord
	for rows.Next() {
		var r schema.CardYieldRecord
		if rs.backend == schema.SQLiteBackend {
			var at string
			if err := rows.Scan(&r.RunID, &r.Card, &r.Category, &r.Process, &r.ProcIndex, &r.Yield, &at); err != nil {
				return nil, fmt.Errorf("failed to scan card yield: %w", err)
			}
			if r.RecordedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
				return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
			}
		} else if err := rows.Scan(&r.RunID, &r.Card, &r.Category, &r.Process, &r.ProcIndex, &r.Yield, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card yield: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card yields: %w", err)
	}
	return results, nil
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t
}

func scanTime(row *sql.Row, backend schema.DatabaseBackend) (time.Time, error) {
	if backend != schema.SQLiteBackend {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	}
	var s string
	if err := row.Scan(&s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func scanIDAndTime(row *sql.Row, backend schema.DatabaseBackend) (int64, time.Time, error) {
	var id int64
	if backend != schema.SQLiteBackend {
		var t time.Time
		err := row.Scan(&id, &t)
		return id, t, err
	}
	var s string
	if err := row.Scan(&id, &s); err != nil {
		return 0, time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return id, t, err
}
