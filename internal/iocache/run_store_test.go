package iocache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/schema"
)

func sampleCard() schema.CardSummary {
	return schema.CardSummary{
		Category: "EM1b",
		Card:     "datacard_EM1b.dat",
		Observed: 250,
		Processes: []schema.ProcessYield{
			{Name: "tbartw100", Index: 0, Yield: 120.5},
			{Name: "tbartw400", Index: -1, Yield: 118},
			{Name: "DY", Index: 1, Yield: 7.5},
		},
		Systematics: 12,
	}
}

func TestRunStore_NoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun("uuid", "hypotest", "out", time.Now(), map[string]any{"k": "v"})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), runID)
	assert.NoError(t, store.EndRun(1, time.Now(), 3))
	assert.NoError(t, store.RecordCardYields(1, sampleCard()))

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestRunStore_SQLite(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun("3f1c", "hypotest", "/tmp/out", start, map[string]any{"dist": "mlb"})
	require.NoError(t, err)
	assert.Positive(t, runID)

	require.NoError(t, store.RecordCardYields(runID, sampleCard()))
	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), 1))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, runID, r.RunID)
	assert.Equal(t, "3f1c", r.RunUUID)
	assert.Equal(t, "hypotest", r.Command)
	assert.Equal(t, "/tmp/out", r.OutputDir)
	assert.True(t, start.Equal(r.StartTime))
	require.NotNil(t, r.EndTime)
	require.NotNil(t, r.RunDurationMs)
	assert.Equal(t, int32(1500), *r.RunDurationMs)
	assert.Equal(t, int32(1), r.TotalCards)
	require.NotNil(t, r.ConfigParams)
	assert.JSONEq(t, `{"dist":"mlb"}`, *r.ConfigParams)

	yields, err := store.GetAllCardYields()
	require.NoError(t, err)
	require.Len(t, yields, 3)
	// Ordered by proc_index within a card
	assert.Equal(t, "tbartw400", yields[0].Process)
	assert.Equal(t, int32(-1), yields[0].ProcIndex)
	assert.Equal(t, "DY", yields[2].Process)
	assert.InDelta(t, 7.5, yields[2].Yield, 1e-9)
	assert.Equal(t, "EM1b", yields[1].Category)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, runID, status.LastRunID)
	assert.Equal(t, 1, status.TotalCards)
	assert.Equal(t, int64(1), status.TableSizes[runsTable])
	assert.Equal(t, int64(3), status.TableSizes[cardYieldsTable])
}

func TestRunStore_DuplicateYieldRollsBack(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	runID, err := store.BeginRun("u", "workspace", "out", time.Now(), nil)
	require.NoError(t, err)

	card := sampleCard()
	card.Processes = append(card.Processes, card.Processes[0])
	assert.Error(t, store.RecordCardYields(runID, card))

	yields, err := store.GetAllCardYields()
	require.NoError(t, err)
	assert.Empty(t, yields)
}

func TestRunStore_EndUnknownRun(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Error(t, store.EndRun(42, time.Now(), 0))
}
