package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"go.uber.org/zap"
)

func nominalReader() *memReader {
	return newMemReader().
		add("in.root", "EE1blowpt_minmlb_w100",
			makeHist("data_obs", 10, 20, 30), makeHist("tbart", 5, 15, 25), makeHist("DY", 1, 2, 3)).
		add("in.root", "EE1blowpt_minmlb_w400",
			makeHist("tbart", 10, 10, 10), makeHist("DY", 1, 1, 1))
}

func testLoader(cfg func(*contract.HypoTestConfig), reader *memReader) *distLoader {
	c := testHypoTestConfig("in.root", "syst.root", "")
	cfg(c)
	return &distLoader{cfg: c, reader: reader, signals: newSignalSet(c.Signals, c.MainHypo, c.AltHypo), logger: zap.NewNop()}
}

func TestVariationDir(t *testing.T) {
	assert.Equal(t, "base", variation{}.dir("base"))
	assert.Equal(t, "base_exp", variation{Name: "puup"}.dir("base"))
	assert.Equal(t, "base_gen", variation{Name: "gen3", Gen: true}.dir("base"))
}

func TestDistLoader_Load(t *testing.T) {
	l := testLoader(func(*contract.HypoTestConfig) {}, nominalReader())

	obs, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, 60.0, obs.Integral())

	assert.Equal(t, []string{"DY", "tbartw100", "tbartw400"}, rootio.SortedNames(exp))
	assert.Equal(t, 45.0, exp["tbartw100"].Integral())
	assert.Equal(t, "tbartw400", exp["tbartw400"].Name)
	assert.Equal(t, []float64{0, 15, 15, 15, 0}, exp["tbartw400"].Content, "alternative shape at the raw yield")
	assert.Equal(t, 6.0, exp["DY"].Integral())
}

func TestDistLoader_LoadMainHypothesis(t *testing.T) {
	reader := nominalReader().add("in.root", "EE1blowpt_minmlb_w50", makeHist("tbart", 3, 3, 3))
	l := testLoader(func(c *contract.HypoTestConfig) { c.MainHypo = 50 }, reader)

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"DY", "tbartw400", "tbartw50"}, rootio.SortedNames(exp))
	assert.Equal(t, []float64{0, 15, 15, 15, 0}, exp["tbartw50"].Content)
}

func TestDistLoader_LoadVariation(t *testing.T) {
	reader := newMemReader().
		addRow("in.root", "EE1blowpt_minmlb_w100_exp", "puup", makeHist("tbart", 6, 16, 26), makeHist("DY", 1, 2, 3)).
		addRow("in.root", "EE1blowpt_minmlb_w400_exp", "puup", makeHist("tbart", 4, 4, 4), makeHist("DY", 1, 1, 1))
	l := testLoader(func(*contract.HypoTestConfig) {}, reader)

	obs, exp, err := l.load(context.Background(), "EE1blowpt", variation{Name: "puup"}, "")
	require.NoError(t, err)
	assert.Nil(t, obs)
	assert.Equal(t, 48.0, exp["tbartw100"].Integral())
	assert.Equal(t, 48.0, exp["tbartw400"].Integral())
	assert.Contains(t, reader.calls, "in.root:EE1blowpt_minmlb_w100_exp[puup]|")

	_, _, err = l.load(context.Background(), "EE1blowpt", variation{Name: "pudn"}, "")
	assert.ErrorIs(t, err, rootio.ErrRowNotFound)
}

func TestDistLoader_LoadVariationFromFile(t *testing.T) {
	rows := map[string][]rootio.RowTable{}
	for _, hypo := range []string{"w100", "w400"} {
		dir := "EE1blowpt_minmlb_" + hypo + "_exp"
		rows[dir] = plotterRows(dir, []string{"jesup_3", "puup"}, map[string][][]float64{
			"t#bar{t}": {{1, 1, 1}, {6, 16, 26}},
			"DY":       {{2, 2, 2}, {1, 2, 3}},
		})
	}
	input := writePlotter(t, "plotter.root", nil, rows)
	reader := rootio.NewFileReader(nil)
	defer reader.Close()

	c := testHypoTestConfig(input, "", "")
	l := &distLoader{cfg: c, reader: reader, signals: newSignalSet(c.Signals, c.MainHypo, c.AltHypo), logger: zap.NewNop()}

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{Name: "puup"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"DY", "tbartw100", "tbartw400"}, rootio.SortedNames(exp))
	assert.Equal(t, []float64{0, 6, 16, 26, 0}, exp["tbartw100"].Content)
	assert.Equal(t, 6.0, exp["DY"].Integral())

	_, exp, err = l.load(context.Background(), "EE1blowpt", variation{Name: "jesup_3"}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1, 0}, exp["tbartw400"].Content)
}

func TestDistLoader_AltHypothesisFromSim(t *testing.T) {
	reader := nominalReader().
		add("syst.root", "EE1blowpt_minmlb_w400", makeHist("tbartm171", 20, 20, 20), makeHist("DY", 5, 5, 5))
	l := testLoader(func(c *contract.HypoTestConfig) { c.AltHypoFromSim = "m171" }, reader)

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 15, 15, 15, 0}, exp["tbartw400"].Content)
	assert.Contains(t, reader.calls, "syst.root:EE1blowpt_minmlb_w400|")
}

func TestDistLoader_AltHypothesisFromSimMatchesProcessNames(t *testing.T) {
	base := "EE1blowpt_minmlb_w400"
	systInput := writePlotter(t, "syst_plotter.root", map[string][]*hist.Hist{
		base: plotterDir(base, nil, map[string][]float64{"t#bar{t} w400": {20, 20, 20}, "DY": {5, 5, 5}}),
	}, map[string][]rootio.RowTable{
		base + "_exp": plotterRows(base+"_exp", []string{"puup"}, map[string][][]float64{
			"t#bar{t} w400": {{30, 30, 30}},
			"DY":            {{6, 6, 6}},
		}),
	})
	reader := rootio.NewFileReader(nil)
	defer reader.Close()

	c := testHypoTestConfig("in.root", systInput, "")
	c.AltHypoFromSim = "w400"
	l := &distLoader{cfg: c, reader: reader, signals: newSignalSet(c.Signals, c.MainHypo, c.AltHypo), logger: zap.NewNop()}

	exp, err := l.altHypothesis(context.Background(), "EE1blowpt", variation{})
	require.NoError(t, err)
	assert.Equal(t, []string{"tbart"}, rootio.SortedNames(exp), "the tag in the directory name does not select DY")
	assert.Equal(t, "tbart", exp["tbart"].Name)
	assert.Equal(t, 60.0, exp["tbart"].Integral())

	exp, err = l.altHypothesis(context.Background(), "EE1blowpt", variation{Name: "puup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tbart"}, rootio.SortedNames(exp))
	assert.Equal(t, 90.0, exp["tbart"].Integral())
}

func TestDistLoader_ReplaceDY(t *testing.T) {
	reader := nominalReader().
		add("syst.root", "EE1blowpt_minmlb_w100", makeHist("DY", 6, 6, 0), makeHist("tbart", 1, 1, 1))
	l := testLoader(func(c *contract.HypoTestConfig) { c.ReplaceDYShape = true }, reader)

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	assert.Equal(t, "DY", exp["DY"].Name)
	assert.Equal(t, []float64{0, 3, 3, 0, 0}, exp["DY"].Content)
}

func TestDistLoader_ReplaceDYMissingKeepsNominal(t *testing.T) {
	l := testLoader(func(c *contract.HypoTestConfig) { c.ReplaceDYShape = true }, nominalReader())

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 0}, exp["DY"].Content)
}

func TestDistLoader_MissingAlternativeTemplate(t *testing.T) {
	reader := nominalReader().add("in.root", "EE1blowpt_minmlb_w300", makeHist("DY", 1, 1, 1))
	l := testLoader(func(c *contract.HypoTestConfig) { c.AltHypo = 300 }, reader)

	_, exp, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"DY", "tbartw100"}, rootio.SortedNames(exp), "raw signal dropped, alternative skipped")
}

func TestDistLoader_MissingDirectory(t *testing.T) {
	l := testLoader(func(*contract.HypoTestConfig) {}, newMemReader())
	_, _, err := l.load(context.Background(), "EE1blowpt", variation{}, "")
	assert.ErrorIs(t, err, rootio.ErrDirNotFound)
}
