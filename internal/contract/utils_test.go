package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"negative yield", -0.5, EmptyValue},
		{"zero yield", 0.0, EmptyValue},
		{"fraction of an event", 0.4, LowStatsValue},
		{"exactly one event", 1.0, NominalValue},
		{"large yield", 1234.5, NominalValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.input))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		yield float64
		label string
	}{
		{0, EmptyValue},
		{0.5, LowStatsValue},
		{10, NominalValue},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Contains(t, GetColorLabel(tt.yield), tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "nested", "yields.csv")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.FileExists(t, path)
}

func TestDBFilePaths(t *testing.T) {
	cache := GetCacheDBFilePath()
	runs := GetRunsDBFilePath()
	assert.NotEqual(t, cache, runs)
	assert.True(t, strings.HasSuffix(cache, "hist_cache.db"))
	assert.True(t, strings.HasSuffix(runs, "runs.db"))
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short", TruncatePath("short", 10))
	assert.Equal(t, "...es.root", TruncatePath("analysis/stat/shapes.root", 10))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestLoggerOrNop(t *testing.T) {
	logger := LoggerOrNop(nil)
	require.NotNil(t, logger)
	logger.Debug("discarded")

	built, err := NewLogger(true)
	require.NoError(t, err)
	assert.Same(t, built, LoggerOrNop(built))
}
