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

func TestPseudoScaler(t *testing.T) {
	a, b := newPseudoScaler(42), newPseudoScaler(42)
	for range 100 {
		v := a.next()
		assert.GreaterOrEqual(t, v, pseudoScaleMin)
		assert.Less(t, v, pseudoScaleMax)
		assert.Equal(t, v, b.next(), "same seed, same sequence")
	}
}

func pseudoExpectations() map[string]*hist.Hist {
	return map[string]*hist.Hist{
		"tbartw100": makeHist("tbartw100", 5, 15, 25),
		"tbartw400": makeHist("tbartw400", 15, 15, 15),
		"DY":        makeHist("DY", 1.5, 2.5, 3.5),
	}
}

func TestBuildPseudoData(t *testing.T) {
	signals := newSignalSet([]string{"tbart"}, 100, 400)
	obs := makeHist(rootio.ObservedName, 100, 100, 100)
	injected := map[string]*hist.Hist{
		"tbart": makeHist("tbart", 1, 1, 1),
		"ttV":   makeHist("ttV", 50, 50, 50),
	}

	got, err := buildPseudoData(obs, pseudoExpectations(), injected, signals, 400, false, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, rootio.ObservedName, got.Name)
	// injected signal scaled to 45, plus DY, truncated
	assert.Equal(t, []float64{0, 16, 17, 18, 0}, got.Content)
}

func TestBuildPseudoData_WithoutObservation(t *testing.T) {
	signals := newSignalSet([]string{"tbart"}, 100, 400)
	injected := map[string]*hist.Hist{"tbart": makeHist("tbart", 3, 3, 3)}

	got, err := buildPseudoData(nil, pseudoExpectations(), injected, signals, 400, true, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, rootio.ObservedName, got.Name)
	assert.Equal(t, 3, got.NBins())
	assert.Equal(t, []float64{0, 16, 17, 18, 0}, got.Content)
}

func TestBuildPseudoData_RandomScale(t *testing.T) {
	signals := newSignalSet([]string{"tbart"}, 100, 400)
	build := func(seed int64) *hist.Hist {
		injected := map[string]*hist.Hist{"tbart": makeHist("tbart", 100, 200, 300)}
		exp := pseudoExpectations()
		exp["tbartw100"] = makeHist("tbartw100", 1000, 2000, 3000)
		got, err := buildPseudoData(nil, exp, injected, signals, 400, false, newPseudoScaler(seed), zap.NewNop())
		require.NoError(t, err)
		return got
	}

	a, b := build(7), build(7)
	assert.Equal(t, a.Content, b.Content)
	assert.InDelta(t, 6007, a.Integral(), 0.01*6000+3)
}

func TestBuildPseudoData_MissingTemplate(t *testing.T) {
	signals := newSignalSet([]string{"tbart"}, 100, 400)
	exp := map[string]*hist.Hist{"DY": makeHist("DY", 1, 1)}
	injected := map[string]*hist.Hist{"tbart": makeHist("tbart", 1, 1)}

	_, err := buildPseudoData(nil, exp, injected, signals, 400, false, nil, zap.NewNop())
	assert.ErrorContains(t, err, "tbartw100")

	_, err = buildPseudoData(nil, map[string]*hist.Hist{}, injected, signals, 400, false, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestDistLoader_PseudoSignal(t *testing.T) {
	reader := newMemReader().
		add("in.root", "EE1blowpt_minmlb_w400", makeHist("tbart", 1, 2)).
		add("syst.root", "EE1blowpt_minmlb_w100", makeHist("t#bar{t} m=171.5", 3, 4), makeHist("t#bar{t} m=173.5", 5, 6)).
		add("in.root", "gen_EE1blowpt_minmlb_w100", makeHist("t#bar{t}", 7, 8), makeHist("DY", 1, 1))

	tests := []struct {
		name   string
		cfg    func(*contract.HypoTestConfig)
		want   float64
		filter string
	}{
		{
			name: "reweighted input",
			cfg:  func(c *contract.HypoTestConfig) { c.PseudoData = 400 },
			want: 3, filter: "in.root:EE1blowpt_minmlb_w400|",
		},
		{
			name: "dedicated sample",
			cfg: func(c *contract.HypoTestConfig) {
				c.PseudoData = 100
				c.PseudoDataFromSim = "t#bar{t}_m=171.5"
			},
			want: 7, filter: "syst.root:EE1blowpt_minmlb_w100|t#bar{t} m=171.5",
		},
		{
			name: "generator weights",
			cfg: func(c *contract.HypoTestConfig) {
				c.PseudoData = 100
				c.PseudoDataFromWgt = "gen_"
			},
			want: 15, filter: "in.root:gen_EE1blowpt_minmlb_w100|t#bar{t}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLoader(tt.cfg, reader)
			sig, err := l.pseudoSignal(context.Background(), "EE1blowpt")
			require.NoError(t, err)
			var total float64
			for _, h := range sig {
				total += h.Integral()
			}
			assert.Equal(t, tt.want, total)
			assert.Contains(t, reader.calls, tt.filter)
		})
	}
}
