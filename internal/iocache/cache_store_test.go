package iocache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/schema"
)

func TestCacheStore_NoneBackend(t *testing.T) {
	store, err := NewCacheStore(histCacheTable, schema.NoneBackend, "")
	require.NoError(t, err)

	_, _, _, err = store.Get("anything")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, store.Set("anything", []byte("x"), 1, 1))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "none", status.Backend)
	assert.NoError(t, store.Close())
}

func TestCacheStore_InvalidTableName(t *testing.T) {
	tests := []string{"", "1abc", "drop table;", "with space"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewCacheStore(name, schema.NoneBackend, "")
			assert.Error(t, err)
		})
	}
}

func TestCacheStore_SQLiteRoundTrip(t *testing.T) {
	store, err := NewCacheStore(histCacheTable, schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, _, _, err = store.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	now := time.Now().Unix()
	require.NoError(t, store.Set("plots.root:ttbar/mlb", []byte{1, 2, 3}, 1, now-10))
	require.NoError(t, store.Set("plots.root:ttbar/mlb", []byte{4, 5}, 2, now))
	require.NoError(t, store.Set("plots.root:data/mlb", []byte{6}, 1, now-100))

	value, version, ts, err := store.Get("plots.root:ttbar/mlb")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, value)
	assert.Equal(t, 2, version)
	assert.Equal(t, now, ts)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, time.Unix(now, 0), status.LastEntryTime)
	assert.Equal(t, time.Unix(now-100, 0), status.OldestEntryTime)
	assert.Positive(t, status.TableSizeBytes)
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`t`", quoteTableName("t", schema.MySQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.PostgreSQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.SQLiteBackend))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", placeholder(schema.PostgreSQLBackend, 3))
	assert.Equal(t, "?", placeholder(schema.MySQLBackend, 3))
	assert.Equal(t, "?", placeholder(schema.SQLiteBackend, 1))
}

func TestDriverFor(t *testing.T) {
	tests := map[schema.DatabaseBackend]string{
		schema.SQLiteBackend:     "sqlite",
		schema.MySQLBackend:      "mysql",
		schema.PostgreSQLBackend: "pgx",
	}
	for backend, want := range tests {
		got, err := driverFor(backend)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := driverFor(schema.NoneBackend)
	assert.Error(t, err)
}

func TestGetCreateTableQuery_KeyColumn(t *testing.T) {
	assert.Contains(t, getCreateTableQuery(histCacheTable, schema.MySQLBackend), "cache_key CHAR(64) PRIMARY KEY")
	assert.Contains(t, getCreateTableQuery(histCacheTable, schema.PostgreSQLBackend), "cache_key TEXT PRIMARY KEY")
	assert.Contains(t, getCreateTableQuery(histCacheTable, schema.SQLiteBackend), "cache_key TEXT PRIMARY KEY")
}
