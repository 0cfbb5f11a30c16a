package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/topljets/cardgen/internal/combine"
)

// scenarioProcesses are the raw signals that get a main and an alternative
// width hypothesis column in the card.
var scenarioProcesses = []string{"tbart", "Singletop"}

// signalName returns the process name of raw signal proc under width hypothesis hypo.
func signalName(proc string, hypo float64) string {
	return strings.ReplaceAll(fmt.Sprintf("%sw%.0f", proc, hypo), ".", "p")
}

// hypoDir returns the directory holding the distributions of a category at a width hypothesis.
func hypoDir(cat, dist string, hypo float64) string {
	return fmt.Sprintf("%s_%s_w%.0f", cat, dist, hypo)
}

// signalSet splits the raw signals into the main and alternative hypothesis columns.
type signalSet struct {
	Raw  []string
	Main []string
	Alt  []string

	mainHypo, altHypo float64
}

func newSignalSet(raw []string, mainHypo, altHypo float64) signalSet {
	s := signalSet{Raw: raw, mainHypo: mainHypo, altHypo: altHypo}
	for _, p := range scenarioProcesses {
		if slices.Contains(raw, p) {
			s.Main = append(s.Main, s.mainName(p))
			s.Alt = append(s.Alt, s.altName(p))
		}
	}
	return s
}

func (s signalSet) mainName(proc string) string { return signalName(proc, s.mainHypo) }

func (s signalSet) altName(proc string) string {
	return proc + combine.AltHypoTag(s.mainHypo, s.altHypo)
}

func (s signalSet) isRaw(proc string) bool { return slices.Contains(s.Raw, proc) }

// isHypothesis reports whether proc is one of the main or alternative columns.
func (s signalSet) isHypothesis(proc string) bool {
	return slices.Contains(s.Main, proc) || slices.Contains(s.Alt, proc)
}

// scenarios maps every scenario process to its hypothesis columns, used to
// expand "@proc" entries of the systematics catalog.
func (s signalSet) scenarios() map[string][]string {
	out := make(map[string][]string)
	for _, p := range scenarioProcesses {
		if s.isRaw(p) {
			out[p] = []string{s.mainName(p), s.altName(p)}
		}
	}
	return out
}

// complementaryCategory swaps the lowpt/highpt tag of a category.
func complementaryCategory(cat string) string {
	if strings.Contains(cat, "lowpt") {
		return strings.ReplaceAll(cat, "lowpt", "highpt")
	}
	return strings.ReplaceAll(cat, "highpt", "lowpt")
}

// outputDirName returns the directory name of a hypothesis test, encoding
// the hypotheses and the observation source.
func outputDirName(mainHypo, altHypo float64, altFromSim string, pseudoData float64, fromSim, fromWgt string) string {
	name := fmt.Sprintf("hypotest_%.0fvs%.0f", mainHypo, altHypo)
	if altFromSim != "" {
		name += "sim" + altFromSim
	}
	if pseudoData == -1 {
		return name + "_data"
	}
	name += fmt.Sprintf("_%.0f", pseudoData)
	switch {
	case fromSim != "":
		name += "sim_"
	case fromWgt != "":
		name += "wgt_"
	}
	return name + "pseudodata"
}
