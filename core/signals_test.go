package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalSet(t *testing.T) {
	s := newSignalSet([]string{"tbart", "Singletop"}, 100, 400)
	assert.Equal(t, []string{"tbartw100", "Singletopw100"}, s.Main)
	assert.Equal(t, []string{"tbartw400", "Singletopw400"}, s.Alt)
	assert.True(t, s.isRaw("tbart"))
	assert.False(t, s.isRaw("tbartw100"))
	assert.True(t, s.isHypothesis("Singletopw400"))
	assert.False(t, s.isHypothesis("DY"))
	assert.Equal(t, map[string][]string{
		"tbart":     {"tbartw100", "tbartw400"},
		"Singletop": {"Singletopw100", "Singletopw400"},
	}, s.scenarios())
}

func TestSignalSet_SameHypotheses(t *testing.T) {
	s := newSignalSet([]string{"tbart"}, 100, 100)
	assert.Equal(t, []string{"tbartw100"}, s.Main)
	assert.Equal(t, []string{"tbartw100a"}, s.Alt)
}

func TestSignalSet_IgnoresUnknownSignals(t *testing.T) {
	s := newSignalSet([]string{"tbartV"}, 100, 400)
	assert.Empty(t, s.Main)
	assert.Empty(t, s.Alt)
	assert.Empty(t, s.scenarios())
}

func TestHypoDir(t *testing.T) {
	assert.Equal(t, "EE1blowpt_minmlb_w100", hypoDir("EE1blowpt", "minmlb", 100))
	assert.Equal(t, "MM2bhighpt_incmlb_w400", hypoDir("MM2bhighpt", "incmlb", 400))
}

func TestComplementaryCategory(t *testing.T) {
	assert.Equal(t, "EE1bhighpt", complementaryCategory("EE1blowpt"))
	assert.Equal(t, "EM2blowpt", complementaryCategory("EM2bhighpt"))
	assert.Equal(t, "MM", complementaryCategory("MM"))
}

func TestOutputDirName(t *testing.T) {
	tests := []struct {
		name       string
		main, alt  float64
		altFromSim string
		pseudo     float64
		sim, wgt   string
		want       string
	}{
		{name: "data", main: 100, alt: 400, pseudo: -1, want: "hypotest_100vs400_data"},
		{name: "alt from sim", main: 100, alt: 100, altFromSim: "m171", pseudo: -1, want: "hypotest_100vs100simm171_data"},
		{name: "pseudo-data", main: 100, alt: 400, pseudo: 400, want: "hypotest_100vs400_400pseudodata"},
		{name: "pseudo-data from sim", main: 100, alt: 400, pseudo: 100, sim: "t#bar{t}_m=171.5", want: "hypotest_100vs400_100sim_pseudodata"},
		{name: "pseudo-data from weights", main: 100, alt: 400, pseudo: 100, wgt: "gen_", want: "hypotest_100vs400_100wgt_pseudodata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputDirName(tt.main, tt.alt, tt.altFromSim, tt.pseudo, tt.sim, tt.wgt))
		})
	}
}
