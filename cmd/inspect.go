package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topljets/cardgen/internal/combine"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/internal/outwriter"
	"github.com/topljets/cardgen/schema"
)

// inspectCmd prints the content of a generated datacard.
var inspectCmd = &cobra.Command{
	Use:   "inspect <datacard>",
	Short: "Print the bins, processes and nuisances of a datacard.",
	Long: `Parse a Combine text datacard and print its process columns and
nuisance rows in the selected format.

Examples:
  # Show a card as a table
  cardgen inspect datacards/hypotest_100vs400_100pseudodata/datacard_EE1blowpt.dat

  # Export the nuisance rows to markdown
  cardgen inspect datacard_EE1blowpt.dat --format markdown --output-file card.md`,
	Args:    cobra.ExactArgs(1),
	PreRunE: commonSetup,
	Run: func(_ *cobra.Command, args []string) {
		card, err := datacard.ParseFile(args[0])
		if err != nil {
			contract.LogFatal("Cannot parse datacard", err)
		}
		if err := outwriter.NewOutWriter().WriteCard(card, common); err != nil {
			contract.LogFatal("Cannot print datacard", err)
		}
	},
}

// systematicsCmd lists the systematics catalog of the hypothesis test.
var systematicsCmd = &cobra.Command{
	Use:   "systematics",
	Short: "List the systematic uncertainties of the hypothesis test.",
	Long: `Print the rate, weight and file systematics that enter the hypothesis-test
datacards, after applying --remove-nuisances.

Examples:
  # Built-in catalog
  cardgen systematics

  # Custom catalog without the theory uncertainties
  cardgen systematics --systematics syst.yaml --remove-nuisances theory`,
	PreRunE: commonSetup,
	Run: func(_ *cobra.Command, _ []string) {
		catalog, err := loadCatalog()
		if err != nil {
			contract.LogFatal("Cannot load systematics catalog", err)
		}
		catalog = combine.RemoveNuisances(catalog, contract.SplitList(viper.GetString("remove-nuisances")))
		if err := outwriter.NewOutWriter().WriteSystematics(catalog, common); err != nil {
			contract.LogFatal("Cannot print systematics", err)
		}
	},
}

// loadCatalog returns the catalog named by --systematics, or the built-in one.
func loadCatalog() (schema.Catalog, error) {
	if path := viper.GetString("systematics"); path != "" {
		return schema.LoadCatalog(path)
	}
	return schema.DefaultCatalog(), nil
}
