package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/internal/combine"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/iocache"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
)

// writeHypoTestInputs writes a plotter and a systematics file for category EE1blowpt.
func writeHypoTestInputs(t *testing.T) (input, systInput string) {
	t.Helper()
	dirs := map[string][]*hist.Hist{}
	put := func(dir string, obs []float64, procs map[string][]float64) {
		dirs[dir] = plotterDir(dir, obs, procs)
	}
	put("EE1blowpt_minmlb_w100", []float64{10, 20, 30}, map[string][]float64{"t#bar{t}": {5, 15, 25}, "DY": {1, 2, 3}})
	put("EE1blowpt_minmlb_w400", nil, map[string][]float64{"t#bar{t}": {10, 10, 10}, "DY": {1, 1, 1}})
	tables := map[string][]rootio.RowTable{}
	for _, hypo := range []string{"w100", "w400"} {
		dir := "EE1blowpt_minmlb_" + hypo + "_exp"
		tables[dir] = plotterRows(dir, []string{"puup", "pudn"}, map[string][][]float64{
			"t#bar{t}": {{6, 16, 26}, {4, 14, 24}},
			"DY":       {{1, 2, 3}, {1, 2, 3}},
		})
	}
	input = writePlotter(t, "plotter.root", dirs, tables)

	systInput = writePlotter(t, "syst_plotter.root", map[string][]*hist.Hist{
		"EE1blowpt_minmlb_w100": plotterDir("EE1blowpt_minmlb_w100", nil, map[string][]float64{"t#bar{t} hdampup": {7, 7, 7}}),
		"EE1blowpt_minmlb_w400": plotterDir("EE1blowpt_minmlb_w400", nil, map[string][]float64{"t#bar{t} hdampup": {8, 8, 8}}),
	}, nil)
	return input, systInput
}

func testCatalog() schema.Catalog {
	return schema.Catalog{
		Rate: []schema.RateSyst{
			{Name: "lumi_13TeV", Value: []float64{1.025}, PDF: "lnN"},
			{Name: "sel_*CH*", Value: []float64{1.02}, PDF: "lnN", Black: []string{"DY"}},
		},
		Weight: []schema.WeightSyst{
			{Name: "pu", Weights: []string{"pu"}, Treatment: schema.ShapeAndRate, NSigma: 1},
		},
		File: []schema.FileSyst{
			{Name: "hdamp", Samples: map[string][]string{"tbart": {"hdampup"}}, NSigma: 1},
		},
	}
}

func trackedStores(t *testing.T, cards int) (*iocache.MockStoreManager, *iocache.MockRunStore) {
	t.Helper()
	runs := &iocache.MockRunStore{}
	runs.On("BeginRun", mock.Anything, HypoTestCommand, mock.Anything, mock.Anything, mock.Anything).Return(int64(7), nil)
	runs.On("RecordCardYields", int64(7), mock.Anything).Return(nil).Times(cards)
	runs.On("EndRun", int64(7), mock.Anything, cards).Return(nil)
	mgr := &iocache.MockStoreManager{}
	mgr.On("GetRunStore").Return(runs)
	return mgr, runs
}

func TestRunHypoTest(t *testing.T) {
	ctx := context.Background()
	input, systInput := writeHypoTestInputs(t)
	cfg := testHypoTestConfig(input, systInput, t.TempDir())
	cfg.Catalog = testCatalog()

	git := &contract.MockGitClient{}
	git.On("GetShortHash", mock.Anything, ".").Return("abc1234", nil)
	mgr, runs := trackedStores(t, 1)

	reader := rootio.NewFileReader(nil)
	defer reader.Close()
	summary, err := RunHypoTest(ctx, cfg, Deps{Reader: reader, Git: git, Stores: mgr})
	require.NoError(t, err)

	outDir := filepath.Join(cfg.OutputDir, "hypotest_100vs400_data")
	assert.Equal(t, HypoTestCommand, summary.Command)
	assert.Equal(t, outDir, summary.OutputDir)
	assert.Equal(t, filepath.Join(outDir, combine.ScriptName), summary.Script)
	assert.NotEmpty(t, summary.RunUUID)

	want := []schema.CardSummary{{
		Category: "EE1blowpt",
		Card:     "datacard_EE1blowpt.dat",
		Observed: 60,
		Processes: []schema.ProcessYield{
			{Name: "tbartw100", Index: -1, Yield: 45},
			{Name: "tbartw400", Index: 0, Yield: 45},
			{Name: "DY", Index: 1, Yield: 6},
		},
		Systematics: 5,
	}}
	if diff := cmp.Diff(want, summary.Cards); diff != "" {
		t.Errorf("card summaries mismatch (-want +got):\n%s", diff)
	}

	card, err := datacard.ParseFile(filepath.Join(outDir, CardFileName("EE1blowpt")))
	require.NoError(t, err)
	assert.Contains(t, card.Header, "Generated by "+contract.CurrentUser()+" with git hash abc1234 for analysis category EE1blowpt")
	require.Len(t, card.Shapes, 1)
	assert.Equal(t, "EE1blowpt_minmlb/$PROCESS", card.Shapes[0].Pattern)

	rows := map[string][]string{}
	for _, s := range card.Systematics {
		rows[s.Name] = s.Values
	}
	assert.Equal(t, []string{"1.025", "1.025", "1.025"}, rows["lumi_13TeV"])
	assert.Equal(t, []string{"1.020", "1.020", "-"}, rows["sel_EE"])
	assert.Equal(t, []string{"1.000", "1.000", "1.000"}, rows["pu"])
	assert.Equal(t, []string{"0.933/1.067", "0.933/1.067", "-"}, rows["pu"+combine.RateSuffix])
	assert.Equal(t, []string{"1.000", "1.000", "-"}, rows["hdamp"])

	shapes := rootio.NewFileReader(nil)
	defer shapes.Close()
	_, nominal, err := shapes.Dists(ctx, filepath.Join(outDir, ShapesFileName), "EE1blowpt_minmlb", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"DY", "data_obs", "tbartw100", "tbartw400"}, rootio.SortedNames(nominal))

	_, puUp, err := shapes.Dists(ctx, filepath.Join(outDir, ShapesFileName), "EE1blowpt_minmlb_puUp", "")
	require.NoError(t, err)
	assert.InDelta(t, 45, puUp["tbartw100"].IntegralAll(), 1e-9, "normalised to the nominal yield")

	_, hdampDown, err := shapes.Dists(ctx, filepath.Join(outDir, ShapesFileName), "EE1blowpt_minmlb_hdampDown", "")
	require.NoError(t, err)
	assert.Equal(t, 45.0, hdampDown["tbartw400"].Integral(), "missing down sample mirrored to the nominal")

	_, err = os.Stat(summary.Script)
	assert.NoError(t, err)

	git.AssertExpectations(t)
	runs.AssertExpectations(t)
}

func TestRunHypoTest_PseudoData(t *testing.T) {
	input, systInput := writeHypoTestInputs(t)
	cfg := testHypoTestConfig(input, systInput, t.TempDir())
	cfg.PseudoData = 400

	reader := rootio.NewFileReader(nil)
	defer reader.Close()
	summary, err := RunHypoTest(context.Background(), cfg, Deps{Reader: reader})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "hypotest_100vs400_400pseudodata"), summary.OutputDir)
	require.Len(t, summary.Cards, 1)
	// injected signal at the main-hypothesis yield plus DY, truncated per bin
	assert.Equal(t, 51.0, summary.Cards[0].Observed)
	assert.Zero(t, summary.Cards[0].Systematics)
}

func TestRunHypoTest_RunsScript(t *testing.T) {
	input, systInput := writeHypoTestInputs(t)
	cfg := testHypoTestConfig(input, systInput, t.TempDir())
	cfg.Run = true

	shell := &contract.MockShellRunner{}
	outDir := filepath.Join(cfg.OutputDir, "hypotest_100vs400_data")
	shell.On("RunScript", mock.Anything, filepath.Join(outDir, combine.ScriptName), outDir).Return([]byte("done"), nil).Once()

	reader := rootio.NewFileReader(nil)
	defer reader.Close()
	_, err := RunHypoTest(context.Background(), cfg, Deps{Reader: reader, Shell: shell})
	require.NoError(t, err)
	shell.AssertExpectations(t)

	failing := &contract.MockShellRunner{}
	failing.On("RunScript", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("exit status 1"))
	_, err = RunHypoTest(context.Background(), cfg, Deps{Reader: reader, Shell: failing})
	assert.ErrorContains(t, err, "exit status 1")

	_, err = RunHypoTest(context.Background(), cfg, Deps{Reader: reader})
	assert.ErrorContains(t, err, "no shell")
}

func TestRunHypoTest_CleansOutputDir(t *testing.T) {
	input, systInput := writeHypoTestInputs(t)
	cfg := testHypoTestConfig(input, systInput, t.TempDir())
	stale := filepath.Join(cfg.OutputDir, "hypotest_100vs400_data", "datacard_old.dat")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	reader := rootio.NewFileReader(nil)
	defer reader.Close()
	_, err := RunHypoTest(context.Background(), cfg, Deps{Reader: reader})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRunHypoTest_Errors(t *testing.T) {
	input, systInput := writeHypoTestInputs(t)
	reader := rootio.NewFileReader(nil)
	defer reader.Close()

	t.Run("missing category", func(t *testing.T) {
		cfg := testHypoTestConfig(input, systInput, t.TempDir())
		cfg.Categories = []string{"MM2bhighpt"}
		_, err := RunHypoTest(context.Background(), cfg, Deps{Reader: reader})
		assert.ErrorIs(t, err, rootio.ErrDirNotFound)
		assert.ErrorContains(t, err, "category MM2bhighpt")
	})

	t.Run("missing signal template", func(t *testing.T) {
		cfg := testHypoTestConfig(input, systInput, t.TempDir())
		cfg.Signals = []string{"tbart", "Singletop"}
		_, err := RunHypoTest(context.Background(), cfg, Deps{Reader: reader})
		assert.ErrorContains(t, err, "no template for signal Singletopw100")
	})

	t.Run("canceled", func(t *testing.T) {
		cfg := testHypoTestConfig(input, systInput, t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := RunHypoTest(ctx, cfg, Deps{Reader: reader})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCardBuilder_BinByBin(t *testing.T) {
	reader := nominalReader()
	cfg := testHypoTestConfig("in.root", "syst.root", t.TempDir())
	cfg.AddBinByBin = 0.9
	gen := testGenerator(cfg, reader, schema.Catalog{})

	card, err := NewCardBuilder(context.Background(), gen, "EE1blowpt").
		ReadDists("").
		WriteProcesses().
		AddBinByBin().
		Write(cfg.OutputDir)
	require.NoError(t, err)

	// only the first DY bin has a relative error above 90%
	assert.Equal(t, 1, card.Systematics)
	_, ok := gen.shapes.Get("EE1blowpt_minmlb_DYbin1EE1blowptUp", "DY")
	assert.True(t, ok)
	down, ok := gen.shapes.Get("EE1blowpt_minmlb_DYbin1EE1blowptDown", "DY")
	require.True(t, ok)
	assert.Equal(t, hist.BinByBinFloor, down.Content[1])

	raw, err := os.ReadFile(filepath.Join(cfg.OutputDir, CardFileName("EE1blowpt")))
	require.NoError(t, err)
	assert.Contains(t, string(raw), fmt.Sprintf("%32s shape%15s%15s%15s\n", "DYbin1EE1blowpt", "-", "-", "1"))
}

func TestCardBuilder_StopsAtFirstError(t *testing.T) {
	cfg := testHypoTestConfig("in.root", "syst.root", t.TempDir())
	cfg.Catalog = testCatalog()
	gen := testGenerator(cfg, newMemReader(), cfg.Catalog)

	_, err := NewCardBuilder(context.Background(), gen, "EE1blowpt").
		ReadDists("").
		InjectPseudoData().
		WriteProcesses().
		AddBinByBin().
		AddRateSysts().
		AddWeightSysts().
		AddFileSysts().
		Write(cfg.OutputDir)
	assert.ErrorIs(t, err, rootio.ErrDirNotFound)
	assert.Zero(t, gen.shapes.Len())
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, CardFileName("EE1blowpt")))
}
