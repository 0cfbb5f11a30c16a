// Package combine renders the shell scripts that drive the Combine tool and
// the nuisance lists passed to it.
package combine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ScriptName is the steering script written next to the datacards.
const ScriptName = "steerHypoTest.sh"

// Card is one datacard entering combineCards.py.
type Card struct {
	Category string
	File     string // base name of the card
}

// ScriptOptions configures the hypothesis-test steering script.
type ScriptOptions struct {
	User         string
	GitHash      string
	MainHypo     float64
	AltHypo      float64
	CombineDir   string // CMSSW area providing combine
	Cards        []Card
	DoValidation bool
	Freeze       string // comma separated nuisances, "all" or empty
}

// AltHypoTag returns the process suffix of the alternative hypothesis, with
// an "a" appended when both hypotheses coincide.
func AltHypoTag(main, alt float64) string {
	tag := strings.ReplaceAll(fmt.Sprintf("w%.0f", alt), ".", "p")
	if main == alt {
		tag += "a"
	}
	return tag
}

type scanPass struct {
	Extra  string
	Suffix string
}

type scriptData struct {
	ScriptOptions
	CardList   string
	AltTag     string
	FitOpts    string
	GoFOpts    string
	ImpactOpts string
	Scans      []scanPass
}

var steerTmpl = template.Must(template.New("steer").Parse(`#
# Generated by {{.User}} with git hash {{.GitHash}} for standard (alternative) hypothesis {{printf "%.0f" .MainHypo}} ({{printf "%.0f" .AltHypo}})
### environment setup
COMBINE={{.CombineDir}}
SCRIPTDIR=` + "`dirname ${0}`" + `
cd ${COMBINE}
eval ` + "`scramv1 r -sh`" + `
cd ${SCRIPTDIR}

### combine datacard and start workspace
combineCards.py {{.CardList}} > datacard.dat

### convert to workspace
text2workspace.py datacard.dat -P HiggsAnalysis.CombinedLimit.TopHypoTest:twoHypothesisTest -m 172.5 --PO verbose --PO altSignal={{.AltTag}} --PO muFloating -o workspace.root

{{- if .DoValidation}}

### dump systematics
python ${CMSSW_BASE}/src/HiggsAnalysis/CombinedLimit/test/systematicsAnalyzer.py datacard.dat --all -f html > systs_summary.html;

### likelihood scans and fits
combine workspace.root -M MultiDimFit -P x --floatOtherPOI=1 --algo=grid --points=50 -n x_scan_obs {{.FitOpts}}
combine workspace.root -M MultiDimFit -P r --floatOtherPOI=1 --algo=grid --points=50 -n r_scan_obs {{.FitOpts}}
combine workspace.root -M MaxLikelihoodFit --saveWithUncertainties --redefineSignalPOIs x -n x_fit_obs {{.FitOpts}};
combine workspace.root -M MaxLikelihoodFit --saveWithUncertainties --redefineSignalPOIs r -n r_fit_obs {{.FitOpts}};

#combine -M GoodnessOfFit workspace.root {{.GoFOpts}}
#combine -M GoodnessOfFit workspace.root {{.GoFOpts}} -t 100 --fixedSignalStrength=1
#mv higgsCombineTest.GoodnessOfFit.mH172.5.root        gof_r_obs.root
#mv higgsCombineTest.GoodnessOfFit.mH172.5.123456.root gof_r_exp.root

#combineTool.py -M Impacts -d workspace.root {{.ImpactOpts}} --doInitialFit
#combineTool.py -M Impacts -d workspace.root {{.ImpactOpts}} --doFits
#combineTool.py -M Impacts -d workspace.root {{.ImpactOpts}} -o impacts.json
#plotImpacts.py -i impacts.json -o impacts
{{- end}}

### SCAN

{{range .Scans -}}
combine -m 172.5 {{.Extra}} -M HybridNew --testStat=TEV --onlyTestStat --saveToys --saveHybridResult --minimizerAlgo Minuit2{{if $.Freeze}} --freezeNuisances {{$.Freeze}}{{end}} --singlePoint 0  workspace.root -n scan0n
mv higgsCombinescan0n.HybridNew.mH172.5.123456.root testStat_scan0n{{.Suffix}}.root
combine -m 172.5 {{.Extra}} -M HybridNew --testStat=TEV --onlyTestStat --saveToys --saveHybridResult --minimizerAlgo Minuit2{{if $.Freeze}} --freezeNuisances {{$.Freeze}}{{end}} --singlePoint 1  workspace.root -n scan1n
mv higgsCombinescan1n.HybridNew.mH172.5.123456.root testStat_scan1n{{.Suffix}}.root
{{end}}
`))

// CardList renders the "category=card" arguments of combineCards.py.
func CardList(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.Category + "=" + c.File
	}
	return strings.Join(parts, " ")
}

// SteeringScript renders the hypothesis-test steering script to w.
func SteeringScript(w io.Writer, o ScriptOptions) error {
	data := scriptData{
		ScriptOptions: o,
		CardList:      CardList(o.Cards),
		AltTag:        AltHypoTag(o.MainHypo, o.AltHypo),
		FitOpts:       "-m 172.5 --setPhysicsModelParameters x=${x},r=1 --setPhysicsModelParameterRanges r=0.8,1.2 --saveWorkspace --robustFit 1 --minimizerAlgoForMinos Minuit2,Migrad --minimizerAlgo Minuit2",
		GoFOpts:       "--minimizerAlgo Minuit2 --minimizerStrategy 2 --algo=saturated -m 172.5  --redefineSignalPOIs r --setPhysicsModelParameterRanges r=0.8,1.2",
		ImpactOpts:    "--minimizerAlgo Minuit2 --minimizerAlgoForMinos Minuit2,Migrad --robustFit 1 -m 172.5 --redefineSignalPOIs r --setPhysicsModelParameterRanges r=0.8,1.2",
		Scans:         []scanPass{{Extra: "-S 0", Suffix: "_stat"}, {}},
	}
	if err := steerTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render steering script: %w", err)
	}
	return nil
}

// WriteSteeringScript writes ScriptName into dir and returns its path.
func WriteSteeringScript(dir string, o ScriptOptions) (string, error) {
	path := filepath.Join(dir, ScriptName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := SteeringScript(f, o); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
