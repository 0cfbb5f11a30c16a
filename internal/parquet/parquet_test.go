package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/schema"
)

func TestRunStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(Run))
	require.NotNil(t, s)
	for _, col := range []string{"run_id", "run_uuid", "command", "output_dir", "start_time", "end_time", "run_duration_ms", "total_cards", "config_params"} {
		_, ok := s.Lookup(col)
		assert.True(t, ok, "Column %s should exist in schema", col)
	}
}

func TestCardYieldStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(CardYield))
	require.NotNil(t, s)
	for _, col := range []string{"run_id", "card", "category", "process", "proc_index", "yield", "recorded_at"} {
		_, ok := s.Lookup(col)
		assert.True(t, ok, "Column %s should exist in schema", col)
	}
}

func TestWriteAndReadRuns(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	end := now.Add(3 * time.Second)
	dur := int32(3000)
	cfg := `{"dist":"incmlb"}`
	records := []schema.RunRecord{
		{RunID: 1, RunUUID: "a", Command: "hypotest", OutputDir: "datacards/hypotest_100vs400_data", StartTime: now, EndTime: &end, RunDurationMs: &dur, TotalCards: 12, ConfigParams: &cfg},
		{RunID: 2, RunUUID: "b", Command: "workspace", OutputDir: "analysis/stat", StartTime: now},
	}

	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteRunsParquet(ConvertRunRecords(records), path))

	rows, err := parquet.ReadFile[Run](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hypotest", rows[0].Command)
	assert.Equal(t, int32(12), rows[0].TotalCards)
	require.NotNil(t, rows[0].ConfigParams)
	assert.Equal(t, cfg, *rows[0].ConfigParams)
	assert.Nil(t, rows[1].EndTime)
	assert.Nil(t, rows[1].RunDurationMs)
}

func TestWriteAndReadCardYields(t *testing.T) {
	now := time.Now().UTC()
	records := []schema.CardYieldRecord{
		{RunID: 1, Card: "datacard_EM1blowpt.dat", Category: "EM1blowpt", Process: "tbartw100", ProcIndex: -1, Yield: 1234.5, RecordedAt: now},
		{RunID: 1, Card: "datacard_EM1blowpt.dat", Category: "EM1blowpt", Process: "DY", ProcIndex: 1, Yield: 12, RecordedAt: now},
	}
	path := filepath.Join(t.TempDir(), "yields.parquet")
	require.NoError(t, WriteCardYieldsParquet(ConvertCardYieldRecords(records), path))

	rows, err := parquet.ReadFile[CardYield](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "tbartw100", rows[0].Process)
	assert.Equal(t, int32(-1), rows[0].ProcIndex)
	assert.InDelta(t, 12.0, rows[1].Yield, 1e-12)
}

func TestWriteRunsParquet_BadPath(t *testing.T) {
	err := WriteRunsParquet(nil, filepath.Join(t.TempDir(), "missing", "runs.parquet"))
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(statErr))
}
