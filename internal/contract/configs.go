package contract

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/topljets/cardgen/schema"
)

// Default values for configuration.
const (
	DefaultHypoTestOutput  = "datacards"
	DefaultWorkspaceOutput = "analysis/stat"
	DefaultWorkspaceInput  = "/eos/cms/store/cmst3/user/psilva/ExclusiveAna/final/ab05162/analysis_0p05/"
	DefaultSignalPattern   = "{boson}_m_X_{mass}_xangle_{xangle}_2017_preTS2_opt_v1_simu_reco.root"
	DefaultMassList        = "780,800,840,900,960,1000,1020,1080,1140,1200,1260,1320,1380,1400,1440,1500,1560,1600"
	DefaultCategories      = "EE1blowpt,EE2blowpt,EE1bhighpt,EE2bhighpt,EM1blowpt,EM2blowpt,EM1bhighpt,EM2bhighpt,MM1blowpt,MM2blowpt,MM1bhighpt,MM2bhighpt"
	DefaultWorkspaceCategs = "nvtx<20,nvtx>=20"
	DefaultPreselZ         = "l1pt>30 && l2pt>20 && bosonpt>50"
	DefaultPreselGamma     = "bosonpt>95"
	DefaultWorkers         = 8
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Input          string `mapstructure:"input"`
	Output         string `mapstructure:"output"`
	Format         string `mapstructure:"format"`
	OutputFile     string `mapstructure:"output-file"`
	Workers        int    `mapstructure:"workers"`
	Verbose        bool   `mapstructure:"verbose"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunsBackend    string `mapstructure:"runs-backend"`
	RunsDBConnect  string `mapstructure:"runs-db-connect"`
	Emoji          string `mapstructure:"emoji"`
	Color          string `mapstructure:"color"`
	Width          int    `mapstructure:"width"`

	// --- Fields from hypotestCmd.Flags() ---
	Combine           string  `mapstructure:"combine"`
	SystInput         string  `mapstructure:"syst-input"`
	Dist              string  `mapstructure:"dist"`
	NToys             int     `mapstructure:"n-toys"`
	AddBinByBin       float64 `mapstructure:"add-bin-by-bin"`
	Rebin             int     `mapstructure:"rebin"`
	PseudoData        float64 `mapstructure:"pseudo-data"`
	UseAltRateUncs    bool    `mapstructure:"use-alt-rate-uncs"`
	ReplaceDYShape    bool    `mapstructure:"replace-dy-shape"`
	DoValidation      bool    `mapstructure:"do-validation"`
	RndmPseudoSF      bool    `mapstructure:"rndm-pseudo-sf"`
	Seed              int64   `mapstructure:"seed"`
	PseudoDataFromSim string  `mapstructure:"pseudo-data-from-sim"`
	PseudoDataFromWgt string  `mapstructure:"pseudo-data-from-wgt"`
	MainHypo          float64 `mapstructure:"main-hypo"`
	AltHypo           float64 `mapstructure:"alt-hypo"`
	AltHypoFromSim    string  `mapstructure:"alt-hypo-from-sim"`
	Signal            string  `mapstructure:"signal"`
	RemoveNuisances   string  `mapstructure:"remove-nuisances"`
	FreezeNuisances   string  `mapstructure:"freeze-nuisances"`
	Cat               string  `mapstructure:"cat"`
	Systematics       string  `mapstructure:"systematics"`
	Mirror            string  `mapstructure:"mirror"`
	Run               bool    `mapstructure:"run"`

	// --- Fields from workspaceCmd.Flags() ---
	Sig         string  `mapstructure:"sig"`
	MassList    string  `mapstructure:"mass-list"`
	InjectMass  string  `mapstructure:"inject-mass"`
	PreselZ     string  `mapstructure:"presel-z"`
	PreselGamma string  `mapstructure:"presel-gamma"`
	Categs      string  `mapstructure:"categs"`
	Lumi        float64 `mapstructure:"lumi"`
	MBin        float64 `mapstructure:"m-bin"`
	MMin        float64 `mapstructure:"m-min"`
	MMax        float64 `mapstructure:"m-max"`
	Unblind     bool    `mapstructure:"unblind"`
}

// CommonConfig holds the validated settings shared by every command.
type CommonConfig struct {
	Output     schema.OutputMode
	OutputFile string
	Workers    int
	Verbose    bool
	Width      int // Terminal width override (0 = auto-detect)

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	UseEmojis bool // Enable emojis in output headers
	UseColors bool // Enable colored labels in table output
}

// HypoTestConfig holds the runtime configuration of the top-width hypothesis test.
// This struct is the "final, validated" config.
type HypoTestConfig struct {
	CommonConfig

	Combine   string
	Input     string
	SystInput string
	Dist      string
	OutputDir string

	NToys       int
	AddBinByBin float64
	Rebin       int

	PseudoData        float64
	PseudoDataFromSim string
	PseudoDataFromWgt string
	RndmPseudoSF      bool
	Seed              int64

	MainHypo       float64
	AltHypo        float64
	AltHypoFromSim string

	UseAltRateUncs bool
	ReplaceDYShape bool
	DoValidation   bool
	Run            bool

	Signals         []string
	Categories      []string
	RemoveNuisances []string
	FreezeNuisances []string

	SystematicsFile string
	Catalog         schema.Catalog
	Mirror          schema.MirrorMode
}

// WorkspaceConfig holds the runtime configuration of the PPS binned workspace generator.
type WorkspaceConfig struct {
	CommonConfig

	Input       string
	OutputDir   string
	SigPattern  string
	Masses      []string
	InjectMass  string
	PreselZ     string
	PreselGamma string
	Categories  []string
	Lumi        float64
	MBin        float64
	MMin        float64
	MMax        float64
	NBins       int
	Unblind     bool
}

// UsesPseudoData reports whether the observation is replaced by pseudo-data.
func (c *HypoTestConfig) UsesPseudoData() bool {
	return c.PseudoData != -1
}

// Clone returns a deep copy of the HypoTestConfig struct.
func (c *HypoTestConfig) Clone() *HypoTestConfig {
	clone := *c
	clone.Signals = slices.Clone(c.Signals)
	clone.Categories = slices.Clone(c.Categories)
	clone.RemoveNuisances = slices.Clone(c.RemoveNuisances)
	clone.FreezeNuisances = slices.Clone(c.FreezeNuisances)
	clone.Catalog = schema.Catalog{
		Rate:   slices.Clone(c.Catalog.Rate),
		Weight: slices.Clone(c.Catalog.Weight),
		File:   slices.Clone(c.Catalog.File),
	}
	return &clone
}

// Clone returns a deep copy of the WorkspaceConfig struct.
func (c *WorkspaceConfig) Clone() *WorkspaceConfig {
	clone := *c
	clone.Masses = slices.Clone(c.Masses)
	clone.Categories = slices.Clone(c.Categories)
	return &clone
}

// ProcessAndValidateCommon validates the settings shared by every command.
func ProcessAndValidateCommon(cfg *CommonConfig, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Verbose = input.Verbose
	cfg.Width = input.Width

	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	cfg.Output = schema.OutputMode(strings.ToLower(input.Format))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, markdown, parquet", input.Format)
	}

	return validateBackendConfigs(cfg, input)
}

// ProcessAndValidateHypoTest performs all parsing and validation for the hypotest command.
func ProcessAndValidateHypoTest(cfg *HypoTestConfig, input *ConfigRawInput) error {
	if err := ProcessAndValidateCommon(&cfg.CommonConfig, input); err != nil {
		return err
	}
	if err := validateHypoInputs(cfg, input); err != nil {
		return err
	}
	if err := processPseudoData(cfg, input); err != nil {
		return err
	}
	return processCatalog(cfg, input)
}

// ProcessAndValidateWorkspace performs all parsing and validation for the workspace command.
func ProcessAndValidateWorkspace(cfg *WorkspaceConfig, input *ConfigRawInput) error {
	if err := ProcessAndValidateCommon(&cfg.CommonConfig, input); err != nil {
		return err
	}

	cfg.Input = input.Input
	if cfg.Input == "" {
		cfg.Input = DefaultWorkspaceInput
	}
	cfg.OutputDir = input.Output
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultWorkspaceOutput
	}
	cfg.SigPattern = input.Sig
	if cfg.SigPattern == "" {
		cfg.SigPattern = DefaultSignalPattern
	}
	cfg.PreselZ = input.PreselZ
	cfg.PreselGamma = input.PreselGamma
	cfg.Unblind = input.Unblind
	cfg.InjectMass = strings.TrimSpace(input.InjectMass)

	cfg.Masses = SplitList(input.MassList)
	if len(cfg.Masses) == 0 {
		return fmt.Errorf("mass-list must contain at least one mass point")
	}
	for _, m := range cfg.Masses {
		if _, err := strconv.ParseFloat(m, 64); err != nil {
			return fmt.Errorf("invalid mass point %q in mass-list", m)
		}
	}

	// An empty category list still yields one inclusive category.
	cfg.Categories = strings.Split(input.Categs, ",")
	for i, c := range cfg.Categories {
		cfg.Categories[i] = strings.TrimSpace(c)
	}

	if input.Lumi <= 0 {
		return fmt.Errorf("lumi must be greater than 0 (received %g)", input.Lumi)
	}
	cfg.Lumi = input.Lumi

	if input.MBin <= 0 {
		return fmt.Errorf("m-bin must be greater than 0 (received %g)", input.MBin)
	}
	if input.MMax <= input.MMin {
		return fmt.Errorf("m-max (%g) must be greater than m-min (%g)", input.MMax, input.MMin)
	}
	cfg.MBin, cfg.MMin, cfg.MMax = input.MBin, input.MMin, input.MMax
	cfg.NBins = int(math.Floor((cfg.MMax - cfg.MMin) / cfg.MBin))
	if cfg.NBins < 1 {
		return fmt.Errorf("mass range [%g, %g] with bin width %g yields no bins", cfg.MMin, cfg.MMax, cfg.MBin)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run-tracking backend configurations.
func validateBackendConfigs(cfg *CommonConfig, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Runs Backend Validation ---
	cfg.RunsBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if cfg.RunsBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunsBackend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
	}
	cfg.RunsDBConnect = input.RunsDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
		return err
	}

	// Cache and runs must not share a SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunsBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runsDBPath := cfg.RunsDBConnect
		if runsDBPath == "" {
			runsDBPath = GetRunsDBFilePath()
		}
		if cacheDBPath == runsDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateHypoInputs processes the numeric and list inputs of the hypothesis test.
func validateHypoInputs(cfg *HypoTestConfig, input *ConfigRawInput) error {
	cfg.Input = strings.TrimSpace(input.Input)
	if cfg.Input == "" {
		return fmt.Errorf("--input is required for the hypotest command")
	}
	if _, err := os.Stat(cfg.Input); err != nil {
		return fmt.Errorf("input file %s is not accessible: %w", cfg.Input, err)
	}
	cfg.SystInput = strings.TrimSpace(input.SystInput)
	cfg.Combine = input.Combine
	cfg.OutputDir = input.Output
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultHypoTestOutput
	}

	cfg.Dist = strings.TrimSpace(input.Dist)
	if cfg.Dist == "" {
		return fmt.Errorf("--dist cannot be empty")
	}

	if input.NToys <= 0 {
		return fmt.Errorf("n-toys must be greater than 0 (received %d)", input.NToys)
	}
	cfg.NToys = input.NToys

	if input.Rebin < 0 {
		return fmt.Errorf("rebin must not be negative (received %d)", input.Rebin)
	}
	cfg.Rebin = input.Rebin
	cfg.AddBinByBin = input.AddBinByBin

	if input.MainHypo <= 0 || input.AltHypo <= 0 {
		return fmt.Errorf("hypotheses must be positive (main=%g, alt=%g)", input.MainHypo, input.AltHypo)
	}
	cfg.MainHypo = input.MainHypo
	cfg.AltHypo = input.AltHypo
	cfg.AltHypoFromSim = input.AltHypoFromSim
	if cfg.AltHypoFromSim != "" && cfg.SystInput == "" {
		return fmt.Errorf("--alt-hypo-from-sim requires --syst-input")
	}

	cfg.UseAltRateUncs = input.UseAltRateUncs
	cfg.ReplaceDYShape = input.ReplaceDYShape
	cfg.DoValidation = input.DoValidation
	cfg.Run = input.Run

	cfg.Signals = SplitList(input.Signal)
	if len(cfg.Signals) == 0 {
		return fmt.Errorf("--signal must list at least one process")
	}
	cfg.Categories = SplitList(input.Cat)
	if len(cfg.Categories) == 0 {
		return fmt.Errorf("--cat must list at least one category")
	}
	cfg.RemoveNuisances = SplitList(input.RemoveNuisances)
	cfg.FreezeNuisances = SplitList(input.FreezeNuisances)

	mirror := input.Mirror
	if mirror == "" {
		mirror = string(schema.MirrorNominal)
	}
	cfg.Mirror = schema.MirrorMode(strings.ToLower(mirror))
	if _, ok := schema.ValidMirrorModes[cfg.Mirror]; !ok {
		return fmt.Errorf("invalid mirror mode '%s'. must be nominal, symmetric", input.Mirror)
	}
	return nil
}

// processPseudoData handles the pseudo-data source selection.
func processPseudoData(cfg *HypoTestConfig, input *ConfigRawInput) error {
	cfg.PseudoData = input.PseudoData
	cfg.PseudoDataFromSim = input.PseudoDataFromSim
	cfg.PseudoDataFromWgt = input.PseudoDataFromWgt
	cfg.RndmPseudoSF = input.RndmPseudoSF
	cfg.Seed = input.Seed

	if cfg.PseudoData != -1 && cfg.PseudoData <= 0 {
		return fmt.Errorf("pseudo-data must be -1 (real data) or a positive hypothesis (received %g)", cfg.PseudoData)
	}
	if cfg.PseudoDataFromSim != "" && cfg.PseudoDataFromWgt != "" {
		return fmt.Errorf("--pseudo-data-from-sim and --pseudo-data-from-wgt are mutually exclusive")
	}
	return nil
}

// processCatalog loads the systematics catalog, falling back to the built-in one.
func processCatalog(cfg *HypoTestConfig, input *ConfigRawInput) error {
	cfg.SystematicsFile = strings.TrimSpace(input.Systematics)
	if cfg.SystematicsFile == "" {
		cfg.Catalog = schema.DefaultCatalog()
		return nil
	}
	catalog, err := schema.LoadCatalog(cfg.SystematicsFile)
	if err != nil {
		return err
	}
	cfg.Catalog = catalog
	return nil
}

// SplitList splits a comma-separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
