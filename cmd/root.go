package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/iocache"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// Validated configurations, one per generator. common serves the commands
// that only print or manage stores.
var (
	hypoCfg = &contract.HypoTestConfig{}
	wsCfg   = &contract.WorkspaceConfig{}
	common  = &contract.CommonConfig{}
)

// logger is the structured diagnostic logger, built before any command runs.
var logger = zap.NewNop()

// profilePrefix enables CPU and memory profiling when non-empty.
var profilePrefix string

// startProfiling starts CPU profiling if enabled.
func startProfiling() error {
	if profilePrefix == "" {
		return nil
	}

	cpuFile, err := os.Create(profilePrefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stdout, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profilePrefix, profilePrefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if profilePrefix == "" {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profilePrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stdout, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profilePrefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "cardgen",
	Short: "Generate CMS Combine datacards from ROOT histograms.",
	Long: `Cardgen turns analysis histograms into Combine datacards, shapes files
and steering scripts for the top-width hypothesis test and the PPS
missing-mass search.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		l, err := contract.NewLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		// stderr cannot be synced on some platforms
		_ = logger.Sync()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".cardgen")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("CARDGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("format", schema.TextOut)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("runs-backend", "")
	viper.SetDefault("runs-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("emoji", "no")
}

// loadConfigFile reads the config file, if any. A missing file is fine; we'll
// use defaults/env/flags.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// loadRawInput merges defaults, file, env and flags into input.
func loadRawInput() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	profilePrefix = viper.GetString("profile")
	return nil
}

// generatorSetup validates the configuration of a generator with process and
// initializes the stores it selects.
func generatorSetup(process func(*contract.ConfigRawInput) (*contract.CommonConfig, error)) error {
	if err := loadRawInput(); err != nil {
		return err
	}
	c, err := process(input)
	if err != nil {
		return err
	}
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	if err := iocache.InitStores(c.CacheBackend, c.CacheDBConnect, c.RunsBackend, c.RunsDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// commonSetup validates the settings shared by every command, without stores.
func commonSetup(_ *cobra.Command, _ []string) error {
	if err := loadRawInput(); err != nil {
		return err
	}
	return contract.ProcessAndValidateCommon(common, input)
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCtx = ctx
	return rootCmd.Execute()
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}
