package core

// ppsChannel is a final state of the exclusive-production analysis.
type ppsChannel struct {
	Code       string // value of the cat branch
	Tag        string // used in category names
	FinalState string // used in the efficiency nuisance
	Boson      string // substituted in the signal file pattern
}

var (
	// ppsChannels lists the final states in task order
	ppsChannels = []ppsChannel{
		{Code: "169", Tag: "zmm", FinalState: "mm", Boson: "Z"},
		{Code: "121", Tag: "zee", FinalState: "ee", Boson: "Z"},
		{Code: "22", Tag: "g", FinalState: "g", Boson: "gamma"},
	}

	// ppsCrossingAngles are the LHC crossing angles (µrad) used in the analysis
	ppsCrossingAngles = []int{120, 130, 140, 150}
)

// Signal cross sections (pb) per crossing angle, for a total of 1 pb.
// They do not sum to 1 as not every crossing angle enters the analysis.
var (
	zSignalXSecs      = map[int]float64{120: 0.269, 130: 0.273, 140: 0.143, 150: 0.293}
	photonSignalXSecs = map[int]float64{120: 0.372, 130: 0.295, 140: 0.162, 150: 0.171}
)

// fiducialCut selects signal events with both protons in the spectrometer acceptance.
const fiducialCut = "gencsi1>0.03 && gencsi1<0.13 && gencsi2>0.03 && gencsi2<0.16"

func signalXSec(ch ppsChannel, angle int) float64 {
	if ch.Boson == "gamma" {
		return photonSignalXSecs[angle]
	}
	return zSignalXSecs[angle]
}
