package cmd

import (
	"github.com/spf13/cobra"
	"github.com/topljets/cardgen/core"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/iocache"
)

// runGenerator executes a generator against the global stores and exits on failure.
func runGenerator[C any](name string, execute core.ExecutorFunc[C], cfg C) {
	if err := execute(rootCtx, cfg, iocache.Manager, logger); err != nil {
		contract.LogFatal("Cannot run "+name, err)
	}
}

// hypotestCmd writes the datacards of the top-width hypothesis test.
var hypotestCmd = &cobra.Command{
	Use:   "hypotest",
	Short: "Write the datacards of the top-width hypothesis test.",
	Long: `Build one Combine datacard per category comparing a main and an
alternative top-quark width hypothesis, with the shapes file and the
steering script that runs the fits.

For every category the command:
- reads the expectations of both hypotheses from the plotter
- optionally replaces the observation with pseudo-data
- derives rate, weight, file and bin-by-bin systematics
- writes datacard_<cat>.dat and stores the templates in shapes.root

Examples:
  # Cards for 100% vs 400% of the SM width
  cardgen hypotest -i plotter.root --syst-input syst_plotter.root --combine $CMSSW_BASE

  # Unblinded cards with a custom systematics catalog
  cardgen hypotest -i plotter.root --pseudo-data -1 --systematics syst.yaml

  # Write and run the fits, exporting the yields to CSV
  cardgen hypotest -i plotter.root --run --format csv --output-file yields.csv`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return generatorSetup(func(in *contract.ConfigRawInput) (*contract.CommonConfig, error) {
			return &hypoCfg.CommonConfig, contract.ProcessAndValidateHypoTest(hypoCfg, in)
		})
	},
	Run: func(_ *cobra.Command, _ []string) {
		runGenerator("hypothesis test", core.ExecuteHypoTest, hypoCfg)
	},
}

// workspaceCmd writes the binned workspace of the PPS missing-mass search.
var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Write the binned templates and cards of the PPS missing-mass search.",
	Long: `Fill the missing-mass templates of every final state (Z->mumu, Z->ee,
photon) and crossing angle (120, 130, 140, 150 urad) from the analysis
ntuples and write one parametric datacard per sub-category.

Backgrounds are estimated from event mixing. Unless --unblind is given,
the observation is the mixed background with the signal at --inject-mass
added on top.

Examples:
  # Blinded workspace with 800 GeV signal injected
  cardgen workspace -i /data/ntuples --inject-mass 800

  # Unblinded workspace in a custom binning
  cardgen workspace -i /data/ntuples --unblind --m-bin 100 --m-min 500 --m-max 2000`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return generatorSetup(func(in *contract.ConfigRawInput) (*contract.CommonConfig, error) {
			return &wsCfg.CommonConfig, contract.ProcessAndValidateWorkspace(wsCfg, in)
		})
	},
	Run: func(_ *cobra.Command, _ []string) {
		runGenerator("workspace generation", core.ExecuteWorkspace, wsCfg)
	},
}
