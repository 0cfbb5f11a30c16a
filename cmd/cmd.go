// Package cmd defines the command-line interface for cardgen.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(hypotestCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(systematicsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("input", "i", "", "Input plotter file (hypotest) or ntuple directory (workspace)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output directory for cards and shapes")
	rootCmd.PersistentFlags().String("format", string(schema.TextOut), "Summary format: text or csv or json or markdown or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write the summary to")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Histogram cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("runs-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("emoji", "no", "Enable emojis in output headers (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of hypotestCmd to Viper
	hypotestCmd.Flags().String("combine", "", "CMSSW_BASE of the combine installation")
	hypotestCmd.Flags().String("syst-input", "", "Input plotter with the alternative-sample systematics")
	hypotestCmd.Flags().StringP("dist", "d", "minmlb", "Distribution to fit")
	hypotestCmd.Flags().Int("n-toys", 2000, "Toys thrown for CLs")
	hypotestCmd.Flags().Float64("add-bin-by-bin", -1, "Add bin-by-bin statistical uncertainties above this relative error (<=0 disables)")
	hypotestCmd.Flags().Int("rebin", 0, "Histogram rebin factor")
	hypotestCmd.Flags().Float64("pseudo-data", 100, "Hypothesis injected as pseudo-data (-1 = real data)")
	hypotestCmd.Flags().Bool("use-alt-rate-uncs", false, "Use rate uncertainties specific to the alternative hypothesis")
	hypotestCmd.Flags().Bool("replace-dy-shape", false, "Take the DY shape from the systematics file")
	hypotestCmd.Flags().Bool("do-validation", false, "Create validation plots and fits")
	hypotestCmd.Flags().Bool("rndm-pseudo-sf", false, "Scale the injected pseudo-data signal by a random factor")
	hypotestCmd.Flags().Int64("seed", 0, "Seed of the pseudo-data scale factor")
	hypotestCmd.Flags().String("pseudo-data-from-sim", "", "Pseudo-data from a dedicated sample of the systematics file")
	hypotestCmd.Flags().String("pseudo-data-from-wgt", "", "Pseudo-data from generator-weighted directories with this prefix")
	hypotestCmd.Flags().Float64("main-hypo", 100, "Main width hypothesis (% of the SM width)")
	hypotestCmd.Flags().Float64("alt-hypo", 400, "Alternative width hypothesis (% of the SM width)")
	hypotestCmd.Flags().String("alt-hypo-from-sim", "", "Alternative hypothesis from a dedicated sample")
	hypotestCmd.Flags().StringP("signal", "s", "tbart,Singletop", "Signal processes (csv)")
	hypotestCmd.Flags().String("remove-nuisances", "", "Nuisance tokens or patterns to remove (csv)")
	hypotestCmd.Flags().String("freeze-nuisances", "", "Nuisance tokens to freeze in the fits (csv, 'all' for every nuisance)")
	hypotestCmd.Flags().StringP("cat", "c", contract.DefaultCategories, "Categories (csv)")
	hypotestCmd.Flags().String("systematics", "", "YAML file overriding the systematics catalog")
	hypotestCmd.Flags().String("mirror", string(schema.MirrorNominal), "Down template of single-sided file systematics: nominal or symmetric")
	hypotestCmd.Flags().Bool("run", false, "Run the steering script after writing it")
	if err := viper.BindPFlags(hypotestCmd.Flags()); err != nil {
		contract.LogFatal("Error binding hypotest flags", err)
	}

	// Bind all flags of workspaceCmd to Viper
	workspaceCmd.Flags().String("sig", contract.DefaultSignalPattern, "Signal file pattern")
	workspaceCmd.Flags().String("mass-list", contract.DefaultMassList, "Signal masses (csv)")
	workspaceCmd.Flags().String("inject-mass", "", "Mass injected in the pseudo-data")
	workspaceCmd.Flags().String("presel-z", contract.DefaultPreselZ, "Preselection of the Z categories")
	workspaceCmd.Flags().String("presel-gamma", contract.DefaultPreselGamma, "Preselection of the photon categories")
	workspaceCmd.Flags().String("categs", contract.DefaultWorkspaceCategs, "Sub-categories (csv)")
	workspaceCmd.Flags().Float64("lumi", 37500, "Integrated luminosity (/pb)")
	workspaceCmd.Flags().Float64("m-bin", 50, "Missing-mass bin width")
	workspaceCmd.Flags().Float64("m-min", 0, "Minimum missing mass")
	workspaceCmd.Flags().Float64("m-max", 2500, "Maximum missing mass")
	workspaceCmd.Flags().Bool("unblind", false, "Use non-mixed data in the final fit")
	if err := viper.BindPFlags(workspaceCmd.Flags()); err != nil {
		contract.LogFatal("Error binding workspace flags", err)
	}

	// systematics and mcp read the catalog flags of hypotest
	systematicsCmd.Flags().AddFlag(hypotestCmd.Flags().Lookup("systematics"))
	systematicsCmd.Flags().AddFlag(hypotestCmd.Flags().Lookup("remove-nuisances"))
	mcpCmd.Flags().AddFlag(hypotestCmd.Flags().Lookup("systematics"))

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
