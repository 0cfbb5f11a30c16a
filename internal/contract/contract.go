// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/topljets/cardgen/schema"
)

// GitClient defines the git operations needed to stamp generated files.
// This allows the generators to be tested without a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)

	// GetShortHash returns the abbreviated hash of the last commit reachable from dir.
	GetShortHash(ctx context.Context, dir string) (string, error)
}

// ShellRunner executes generated shell scripts.
type ShellRunner interface {
	// RunScript runs the script at path with dir as working directory and
	// returns its combined output.
	RunScript(ctx context.Context, path string, dir string) ([]byte, error)
}

// StoreManager defines the interface for managing the persistent stores.
// This allows the storage layer to be mocked for testing.
type StoreManager interface {
	GetHistStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking generation runs and the yields they produced.
type RunStore interface {
	// BeginRun records a new generation run and returns its unique ID
	BeginRun(runUUID, command, outputDir string, startTime time.Time, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, totalCards int) error

	// RecordCardYields stores the per-process yields written to a datacard
	RecordCardYields(runID int64, card schema.CardSummary) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every tracked run ordered by ID
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllCardYields returns every tracked yield ordered by run and card
	GetAllCardYields() ([]schema.CardYieldRecord, error)

	// Close closes the underlying connection
	Close() error
}
