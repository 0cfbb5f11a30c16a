package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/schema"
)

// baseRawInput returns a raw input populated with the CLI defaults.
func baseRawInput(t *testing.T) *ConfigRawInput {
	t.Helper()
	input := filepath.Join(t.TempDir(), "plotter.root")
	require.NoError(t, os.WriteFile(input, []byte("root"), 0o644))
	return &ConfigRawInput{
		Input:        input,
		Format:       "text",
		Workers:      DefaultWorkers,
		CacheBackend: "none",
		Emoji:        "no",
		Color:        "yes",
		Dist:         "minmlb",
		NToys:        2000,
		AddBinByBin:  -1,
		PseudoData:   100,
		MainHypo:     100,
		AltHypo:      400,
		Signal:       "tbart,Singletop",
		Cat:          DefaultCategories,
		Mirror:       "nominal",
		MassList:     DefaultMassList,
		PreselZ:      DefaultPreselZ,
		PreselGamma:  DefaultPreselGamma,
		Categs:       DefaultWorkspaceCategs,
		Lumi:         37500,
		MBin:         50,
		MMin:         0,
		MMax:         2500,
	}
}

func TestProcessAndValidateHypoTest(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
		check       func(*testing.T, *HypoTestConfig)
	}{
		{
			name: "valid defaults",
			check: func(t *testing.T, cfg *HypoTestConfig) {
				assert.Equal(t, DefaultHypoTestOutput, cfg.OutputDir)
				assert.Equal(t, []string{"tbart", "Singletop"}, cfg.Signals)
				assert.Len(t, cfg.Categories, 12)
				assert.Equal(t, schema.MirrorNominal, cfg.Mirror)
				assert.True(t, cfg.UsesPseudoData())
				assert.True(t, cfg.UseColors)
				assert.False(t, cfg.UseEmojis)
				assert.NotEmpty(t, cfg.Catalog.Weight)
			},
		},
		{
			name:        "missing input",
			mutate:      func(in *ConfigRawInput) { in.Input = "" },
			expectError: true,
		},
		{
			name:        "input does not exist",
			mutate:      func(in *ConfigRawInput) { in.Input = "/nonexistent/plotter.root" },
			expectError: true,
		},
		{
			name:        "negative rebin",
			mutate:      func(in *ConfigRawInput) { in.Rebin = -2 },
			expectError: true,
		},
		{
			name:        "zero workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: true,
		},
		{
			name:        "invalid mirror mode",
			mutate:      func(in *ConfigRawInput) { in.Mirror = "reflect" },
			expectError: true,
		},
		{
			name:        "invalid format",
			mutate:      func(in *ConfigRawInput) { in.Format = "xml" },
			expectError: true,
		},
		{
			name:        "empty signal list",
			mutate:      func(in *ConfigRawInput) { in.Signal = " , " },
			expectError: true,
		},
		{
			name:        "alt hypothesis from sim without syst input",
			mutate:      func(in *ConfigRawInput) { in.AltHypoFromSim = "t#bar{t} w400" },
			expectError: true,
		},
		{
			name: "real data",
			mutate: func(in *ConfigRawInput) {
				in.PseudoData = -1
			},
			check: func(t *testing.T, cfg *HypoTestConfig) {
				assert.False(t, cfg.UsesPseudoData())
			},
		},
		{
			name:        "invalid pseudo data hypothesis",
			mutate:      func(in *ConfigRawInput) { in.PseudoData = 0 },
			expectError: true,
		},
		{
			name: "conflicting pseudo data sources",
			mutate: func(in *ConfigRawInput) {
				in.PseudoDataFromSim = "t#bar{t}_w400"
				in.PseudoDataFromWgt = "gen_"
			},
			expectError: true,
		},
		{
			name: "nuisance lists are split and trimmed",
			mutate: func(in *ConfigRawInput) {
				in.RemoveNuisances = "jes, pu ,"
				in.FreezeNuisances = "all"
				in.Output = "out/cards"
			},
			check: func(t *testing.T, cfg *HypoTestConfig) {
				assert.Equal(t, []string{"jes", "pu"}, cfg.RemoveNuisances)
				assert.Equal(t, []string{"all"}, cfg.FreezeNuisances)
				assert.Equal(t, "out/cards", cfg.OutputDir)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseRawInput(t)
			if tt.mutate != nil {
				tt.mutate(input)
			}
			cfg := &HypoTestConfig{}
			err := ProcessAndValidateHypoTest(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestProcessAndValidateHypoTest_CatalogFile(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "systs.yaml")
	content := `
rate:
  - name: lumi_13TeV
    value: [1.025]
weight:
  - name: pu
    weights: [pu]
    treatment: 1
    nsigma: 1
`
	require.NoError(t, os.WriteFile(catalog, []byte(content), 0o644))

	input := baseRawInput(t)
	input.Systematics = catalog
	cfg := &HypoTestConfig{}
	require.NoError(t, ProcessAndValidateHypoTest(cfg, input))

	assert.Equal(t, []string{"lumi_13TeV", "pu"}, cfg.Catalog.Names())
	assert.Equal(t, "lnN", cfg.Catalog.Rate[0].PDF)
}

func TestProcessAndValidateWorkspace(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
		check       func(*testing.T, *WorkspaceConfig)
	}{
		{
			name: "valid defaults",
			check: func(t *testing.T, cfg *WorkspaceConfig) {
				assert.Equal(t, DefaultWorkspaceOutput, cfg.OutputDir)
				assert.Equal(t, DefaultSignalPattern, cfg.SigPattern)
				assert.Equal(t, 50, cfg.NBins)
				assert.Equal(t, []string{"nvtx<20", "nvtx>=20"}, cfg.Categories)
				assert.Len(t, cfg.Masses, 18)
			},
		},
		{
			name:   "empty category list keeps one inclusive category",
			mutate: func(in *ConfigRawInput) { in.Categs = "" },
			check: func(t *testing.T, cfg *WorkspaceConfig) {
				assert.Equal(t, []string{""}, cfg.Categories)
			},
		},
		{
			name:   "bin count is floored",
			mutate: func(in *ConfigRawInput) { in.MBin = 60 },
			check: func(t *testing.T, cfg *WorkspaceConfig) {
				assert.Equal(t, 41, cfg.NBins)
			},
		},
		{
			name:        "inverted mass range",
			mutate:      func(in *ConfigRawInput) { in.MMin, in.MMax = 2500, 0 },
			expectError: true,
		},
		{
			name:        "zero bin width",
			mutate:      func(in *ConfigRawInput) { in.MBin = 0 },
			expectError: true,
		},
		{
			name:        "non numeric mass",
			mutate:      func(in *ConfigRawInput) { in.MassList = "780,abc" },
			expectError: true,
		},
		{
			name:        "no luminosity",
			mutate:      func(in *ConfigRawInput) { in.Lumi = 0 },
			expectError: true,
		},
		{
			name:   "default input directory",
			mutate: func(in *ConfigRawInput) { in.Input = "" },
			check: func(t *testing.T, cfg *WorkspaceConfig) {
				assert.Equal(t, DefaultWorkspaceInput, cfg.Input)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseRawInput(t)
			if tt.mutate != nil {
				tt.mutate(input)
			}
			cfg := &WorkspaceConfig{}
			err := ProcessAndValidateWorkspace(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name        string
		backend     schema.DatabaseBackend
		connStr     string
		expectError bool
	}{
		{"sqlite without conn", schema.SQLiteBackend, "", false},
		{"none backend", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "root:pw@tcp(localhost:3306)/cardgen", false},
		{"mysql missing tcp", schema.MySQLBackend, "root:pw@localhost/cardgen", true},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost port=5432 user=postgres dbname=cardgen", false},
		{"postgres missing dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBackendConfigs_SharedSQLiteFile(t *testing.T) {
	cfg := &CommonConfig{}
	input := &ConfigRawInput{
		CacheBackend:   "sqlite",
		CacheDBConnect: "/tmp/same.db",
		RunsBackend:    "sqlite",
		RunsDBConnect:  "/tmp/same.db",
	}
	err := validateBackendConfigs(cfg, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different SQLite database files")
}

func TestHypoTestConfigClone(t *testing.T) {
	cfg := &HypoTestConfig{
		Signals:    []string{"tbart"},
		Categories: []string{"EE1blowpt"},
		Catalog:    schema.DefaultCatalog(),
	}
	clone := cfg.Clone()
	clone.Signals[0] = "Singletop"
	clone.Catalog.Rate[0].Name = "changed"

	assert.Equal(t, "tbart", cfg.Signals[0])
	assert.Equal(t, "lumi_13TeV", cfg.Catalog.Rate[0].Name)
}

func TestWorkspaceConfigClone(t *testing.T) {
	cfg := &WorkspaceConfig{Masses: []string{"780"}, Categories: []string{"nvtx<20"}}
	clone := cfg.Clone()
	clone.Masses[0] = "800"
	clone.Categories = append(clone.Categories, "nvtx>=20")

	assert.Equal(t, []string{"780"}, cfg.Masses)
	assert.Equal(t, []string{"nvtx<20"}, cfg.Categories)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
}
