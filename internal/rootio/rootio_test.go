package rootio

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/internal/hist"
)

func makeHist(name string, content ...float64) *hist.Hist {
	h := hist.New(name, name, len(content), 0, float64(len(content)))
	for i, v := range content {
		h.Content[i+1] = v
		h.SumW2[i+1] = v
	}
	return h
}

// writePlotter writes a plotter-like file with one directory per entry.
func writePlotter(t *testing.T, dirs map[string][]*hist.Hist) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plotter.root")
	shapes := NewShapesFile()
	for dir, hs := range dirs {
		for _, h := range hs {
			shapes.Put(dir, h)
		}
	}
	require.NoError(t, shapes.Write(path))
	return path
}

func TestProcessName(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{"EE1blowpt_minmlb_w100", "EE1blowpt_minmlb_w100_t#bar{t}", "tbart"},
		{"EE1blowpt_minmlb_w100", "EE1blowpt_minmlb_w100_Single top", "Singletop"},
		{"EE1blowpt_minmlb_w100", "EE1blowpt_minmlb_w100_t#bar{t}+V", "tbartV"},
		{"EE1blowpt_minmlb_w100", "EE1blowpt_minmlb_w100_Z/#gamma*", "Z/gamma"},
		{"base", "other_(DY)@x", "other_DYx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProcessName(tt.base, tt.name))
	}
}

func TestFileReader_Dists(t *testing.T) {
	base := "EE1blowpt_minmlb_w100"
	path := writePlotter(t, map[string][]*hist.Hist{
		base: {
			makeHist(base, 10, 20, 30),
			makeHist(base+"_t#bar{t}", 5, 15, 25),
			makeHist(base+"_DY", 1, 2, 3),
		},
	})

	reader := NewFileReader(nil)
	defer func() { assert.NoError(t, reader.Close()) }()
	ctx := context.Background()

	obs, exp, err := reader.Dists(ctx, path, base, "")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, ObservedName, obs.Name)
	assert.Equal(t, 60.0, obs.Integral())
	assert.Equal(t, []string{"DY", "tbart"}, SortedNames(exp))
	assert.Equal(t, 45.0, exp["tbart"].Integral())
	assert.InDelta(t, 5, exp["tbart"].SumW2[1], 1e-9)
	assert.Equal(t, 3, exp["tbart"].NBins())

	_, filtered, err := reader.Dists(ctx, path, base, "DY")
	require.NoError(t, err)
	assert.Equal(t, []string{"DY"}, SortedNames(filtered))

	_, _, err = reader.Dists(ctx, path, "missing", "")
	assert.ErrorIs(t, err, ErrDirNotFound)

	_, _, err = reader.Dists(ctx, filepath.Join(t.TempDir(), "nope.root"), base, "")
	assert.Error(t, err)
}

func TestFileReader_Rows(t *testing.T) {
	dir := "EE1blowpt_minmlb_w100_exp"
	up := makeHist("up", 6, 16, 26)
	up.Content[0], up.SumW2[0] = 2, 4
	up.Content[4], up.SumW2[4] = 3, 1.5

	shapes := NewShapesFile()
	shapes.PutRows(dir, RowTable{
		Name:   dir,
		Labels: []string{"puup", "pudn"},
		Rows:   []*hist.Hist{makeHist("obs", 11, 21, 31), makeHist("obs", 9, 19, 29)},
	})
	shapes.PutRows(dir, RowTable{
		Name:   dir + "_t#bar{t}",
		Labels: []string{"jesup_3", "puup", "pudn"},
		Rows:   []*hist.Hist{makeHist("j", 1, 1, 1), up, makeHist("dn", 4, 14, 24)},
	})
	shapes.PutRows(dir, RowTable{
		Name:   dir + "_DY",
		Labels: []string{"puup"},
		Rows:   []*hist.Hist{makeHist("dy", 1, 2, 3)},
	})
	shapes.Put(dir, makeHist(dir+"_flat", 1, 2, 3))
	path := filepath.Join(t.TempDir(), "plotter.root")
	require.NoError(t, shapes.Write(path))

	reader := NewFileReader(nil)
	defer func() { assert.NoError(t, reader.Close()) }()
	ctx := context.Background()

	obs, exp, err := reader.Rows(ctx, path, dir, "puup", "")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, ObservedName, obs.Name)
	assert.Equal(t, 63.0, obs.Integral())
	assert.Equal(t, []string{"DY", "tbart"}, SortedNames(exp), "1-D histograms are not rows")

	tbart := exp["tbart"]
	assert.Equal(t, "tbart", tbart.Name)
	assert.Equal(t, []float64{0, 1, 2, 3}, tbart.Edges)
	assert.Equal(t, []float64{2, 6, 16, 26, 3}, tbart.Content)
	assert.InDeltaSlice(t, []float64{4, 6, 16, 26, 1.5}, tbart.SumW2, 1e-9)
	assert.Equal(t, 6.0, exp["DY"].Integral())

	_, exp, err = reader.Rows(ctx, path, dir, "pudn", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tbart"}, SortedNames(exp), "histograms without the row are skipped")
	assert.Equal(t, 42.0, exp["tbart"].Integral())

	obs, exp, err = reader.Rows(ctx, path, dir, "jesup_3", "t#bar{t}")
	require.NoError(t, err)
	assert.Nil(t, obs)
	assert.Equal(t, 3.0, exp["tbart"].Integral())

	_, _, err = reader.Rows(ctx, path, dir, "hdampup", "")
	assert.ErrorIs(t, err, ErrRowNotFound)

	_, _, err = reader.Rows(ctx, path, "EE1blowpt_minmlb_w100_gen", "puup", "")
	assert.ErrorIs(t, err, ErrDirNotFound)

	_, exp, err = reader.Dists(ctx, path, dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"flat"}, SortedNames(exp), "2-D histograms are not distributions")
}

func TestRowTable_ToROOT(t *testing.T) {
	_, err := RowTable{Name: "empty"}.ToROOT()
	assert.Error(t, err)

	_, err = RowTable{Name: "short", Labels: []string{"a", "b"}, Rows: []*hist.Hist{makeHist("a", 1)}}.ToROOT()
	assert.Error(t, err)

	_, err = RowTable{Name: "mixed", Labels: []string{"a", "b"}, Rows: []*hist.Hist{makeHist("a", 1), makeHist("b", 1, 2)}}.ToROOT()
	assert.ErrorIs(t, err, hist.ErrBinningMismatch)

	h2, err := RowTable{Name: "ok", Labels: []string{"up", "dn"}, Rows: []*hist.Hist{makeHist("a", 1, 2), makeHist("b", 3, 4)}}.ToROOT()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"up": 1, "dn": 2}, axisLabels(h2.YAxis()))

	row, err := RowFromROOT("b", h2, "dn")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 4, 0}, row.Content)

	_, err = RowFromROOT("c", h2, "missing")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestFileReader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewFileReader(nil).Dists(ctx, "any.root", "dir", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileReader_ListDirs(t *testing.T) {
	path := writePlotter(t, map[string][]*hist.Hist{
		"b_dir": {makeHist("b_dir", 1)},
		"a_dir": {makeHist("a_dir", 1)},
	})
	reader := NewFileReader(nil)
	defer reader.Close()

	dirs, err := reader.ListDirs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_dir", "b_dir"}, dirs)
}

func TestShapesFile(t *testing.T) {
	shapes := NewShapesFile()
	shapes.PutAll("cat_dist", map[string]*hist.Hist{
		"tbartw100": makeHist("whatever", 1, 2, 3, 4),
		"data_obs":  makeHist("obs", 4, 3, 2, 1),
	}, 2)
	shapes.Put("", makeHist("top", 1))

	assert.Equal(t, []string{"cat_dist", ""}, shapes.Dirs())
	assert.Equal(t, 3, shapes.Len())

	h, ok := shapes.Get("cat_dist", "tbartw100")
	require.True(t, ok)
	assert.Equal(t, 2, h.NBins(), "rebinned")
	assert.Equal(t, []float64{0, 3, 7, 0}, h.Content)

	path := filepath.Join(t.TempDir(), "out", "shapes.root")
	require.NoError(t, shapes.Write(path))

	reader := NewFileReader(nil)
	defer reader.Close()
	obs, exp, err := reader.Dists(context.Background(), path, "cat_dist", "")
	require.NoError(t, err)
	assert.Nil(t, obs, "no histogram is named after the directory")
	assert.Equal(t, []string{"data_obs", "tbartw100"}, SortedNames(exp))
	assert.Equal(t, 10.0, exp["tbartw100"].Integral())
}

func TestShapesFile_OverwritesEntries(t *testing.T) {
	shapes := NewShapesFile()
	shapes.Put("d", makeHist("h", 1))
	shapes.Put("d", makeHist("h", 2))
	assert.Equal(t, 1, shapes.Len())
	h, _ := shapes.Get("d", "h")
	assert.Equal(t, 2.0, h.Integral())
}

func TestConvertRoundTrip_FlowBins(t *testing.T) {
	h := makeHist("flow", 1, 2)
	h.Content[0], h.SumW2[0] = 3, 9
	h.Content[3], h.SumW2[3] = 4, 16

	path := writePlotter(t, map[string][]*hist.Hist{"d": {h}})
	reader := NewFileReader(nil)
	defer reader.Close()
	_, exp, err := reader.Dists(context.Background(), path, "d", "")
	require.NoError(t, err)

	got := exp["flow"]
	require.NotNil(t, got)
	assert.Equal(t, []float64{3, 1, 2, 4}, got.Content)
	assert.InDelta(t, 4, got.Error(3), 1e-9)
	assert.Equal(t, []float64{0, 1, 2}, got.Edges)
}
