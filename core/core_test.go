package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/internal/iocache"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

// untrackedStores returns a manager with caching and tracking disabled.
func untrackedStores() *iocache.MockStoreManager {
	mgr := &iocache.MockStoreManager{}
	mgr.On("GetHistStore").Return(nil)
	mgr.On("GetRunStore").Return(nil)
	return mgr
}

// TestExecuteHypoTest tests the hypothesis-test entry point.
func TestExecuteHypoTest(t *testing.T) {
	input, systInput := writeHypoTestInputs(t)
	cfg := testHypoTestConfig(input, systInput, t.TempDir())
	cfg.Catalog = testCatalog()
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "yields.json")
	mgr := untrackedStores()

	require.NoError(t, ExecuteHypoTest(context.Background(), cfg, mgr, zap.NewNop()))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var summary schema.GenerationSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, HypoTestCommand, summary.Command)
	require.Len(t, summary.Cards, 1)
	assert.Equal(t, 60.0, summary.Cards[0].Observed)
	assert.FileExists(t, filepath.Join(summary.OutputDir, CardFileName("EE1blowpt")))

	mgr.AssertExpectations(t)
}

// TestExecuteHypoTest_MissingInput tests that read failures abort the run.
func TestExecuteHypoTest_MissingInput(t *testing.T) {
	cfg := testHypoTestConfig(filepath.Join(t.TempDir(), "missing.root"), "", t.TempDir())
	cfg.Catalog = testCatalog()

	err := ExecuteHypoTest(context.Background(), cfg, untrackedStores(), nil)
	assert.Error(t, err)
}

// TestExecuteWorkspace tests the workspace entry point with an input
// directory lacking the ntuples of the other final states.
func TestExecuteWorkspace(t *testing.T) {
	cfg := testWorkspaceConfig(writeWorkspaceInputs(t), t.TempDir())
	cfg.Output = schema.JSONOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "yields.json")

	err := ExecuteWorkspace(context.Background(), cfg, untrackedStores(), zap.NewNop())
	assert.Error(t, err)
	assert.NoFileExists(t, cfg.OutputFile, "no summary for a failed run")
}
