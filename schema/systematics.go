package schema

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScenarioPrefix marks a process token that expands to the signal hypotheses
// derived from it (e.g. "@tbart" -> tbartw100, tbartw400).
const ScenarioPrefix = "@"

// RateSyst is a normalization uncertainty with a fixed magnitude.
// Value holds either a single symmetric value or a [down, up] pair.
type RateSyst struct {
	Name  string    `yaml:"name" json:"name"`
	Value []float64 `yaml:"value" json:"value"`
	PDF   string    `yaml:"pdf" json:"pdf"`
	White []string  `yaml:"white,omitempty" json:"white,omitempty"`
	Black []string  `yaml:"black,omitempty" json:"black,omitempty"`
}

// WeightSyst is a shape uncertainty derived from event-weight variations
// stored next to the nominal distributions.
type WeightSyst struct {
	Name      string         `yaml:"name" json:"name"`
	Weights   []string       `yaml:"weights" json:"weights"`
	White     []string       `yaml:"white,omitempty" json:"white,omitempty"`
	Black     []string       `yaml:"black,omitempty" json:"black,omitempty"`
	Treatment ShapeTreatment `yaml:"treatment" json:"treatment"`
	NSigma    float64        `yaml:"nsigma" json:"nsigma"`
}

// FileSyst is a shape uncertainty derived from dedicated alternative samples.
// Samples maps a process to its [down, up] sample names, or to a single
// up sample when the down variation has to be mirrored.
type FileSyst struct {
	Name            string              `yaml:"name" json:"name"`
	Samples         map[string][]string `yaml:"samples" json:"samples"`
	Treatment       ShapeTreatment      `yaml:"treatment" json:"treatment"`
	NSigma          float64             `yaml:"nsigma" json:"nsigma"`
	NSigmaByProcess map[string]float64  `yaml:"nsigma_by_process,omitempty" json:"nsigma_by_process,omitempty"`
}

// Catalog is the full list of systematic uncertainties entering a datacard.
type Catalog struct {
	Rate   []RateSyst   `yaml:"rate" json:"rate"`
	Weight []WeightSyst `yaml:"weight" json:"weight"`
	File   []FileSyst   `yaml:"file" json:"file"`
}

// IsGen reports whether the variation is stored with the generator-level weights.
func (w WeightSyst) IsGen() bool {
	for _, wgt := range w.Weights {
		if strings.Contains(wgt, "gen") {
			return true
		}
	}
	return slices.Contains(w.Weights, "toppt")
}

// SigmaFor returns the number of standard deviations the variation represents for proc.
func (f FileSyst) SigmaFor(proc string) float64 {
	if len(f.NSigmaByProcess) == 0 {
		return f.NSigma
	}
	base, _, _ := strings.Cut(proc, "w")
	if v, ok := f.NSigmaByProcess[base]; ok {
		return v
	}
	return f.NSigma
}

// Processes returns the processes affected by the file systematic in a stable order.
func (f FileSyst) Processes() []string {
	procs := make([]string, 0, len(f.Samples))
	for p := range f.Samples {
		procs = append(procs, p)
	}
	sort.Strings(procs)
	return procs
}

// Names returns every systematic name in catalog order.
func (c Catalog) Names() []string {
	var names []string
	for _, s := range c.Rate {
		names = append(names, s.Name)
	}
	for _, s := range c.Weight {
		names = append(names, s.Name)
	}
	for _, s := range c.File {
		names = append(names, s.Name)
	}
	return names
}

// Filter returns a copy of the catalog keeping only systematics accepted by keep.
func (c Catalog) Filter(keep func(name string) bool) Catalog {
	var out Catalog
	for _, s := range c.Rate {
		if keep(s.Name) {
			out.Rate = append(out.Rate, s)
		}
	}
	for _, s := range c.Weight {
		if keep(s.Name) {
			out.Weight = append(out.Weight, s)
		}
	}
	for _, s := range c.File {
		if keep(s.Name) {
			out.File = append(out.File, s)
		}
	}
	return out
}

// ExpandScenarios replaces "@proc" tokens in white and black lists with the
// given signal scenarios. Tokens without scenarios fall back to the bare name.
func (c Catalog) ExpandScenarios(scenarios map[string][]string) Catalog {
	expand := func(list []string) []string {
		if len(list) == 0 {
			return list
		}
		out := make([]string, 0, len(list))
		for _, p := range list {
			name, ok := strings.CutPrefix(p, ScenarioPrefix)
			if !ok {
				out = append(out, p)
				continue
			}
			if sc, found := scenarios[name]; found {
				out = append(out, sc...)
			} else {
				out = append(out, name)
			}
		}
		return out
	}

	out := Catalog{
		Rate:   make([]RateSyst, len(c.Rate)),
		Weight: make([]WeightSyst, len(c.Weight)),
		File:   c.File,
	}
	for i, s := range c.Rate {
		s.White, s.Black = expand(s.White), expand(s.Black)
		out.Rate[i] = s
	}
	for i, s := range c.Weight {
		s.White, s.Black = expand(s.White), expand(s.Black)
		out.Weight[i] = s
	}
	return out
}

// Validate checks the catalog for malformed entries.
func (c Catalog) Validate() error {
	for _, s := range c.Rate {
		if s.Name == "" {
			return fmt.Errorf("rate systematic without name")
		}
		if len(s.Value) != 1 && len(s.Value) != 2 {
			return fmt.Errorf("rate systematic %s: value must hold 1 or 2 numbers (got %d)", s.Name, len(s.Value))
		}
	}
	for _, s := range c.Weight {
		if s.Name == "" || len(s.Weights) == 0 {
			return fmt.Errorf("weight systematic %q needs a name and at least one weight", s.Name)
		}
		if s.Treatment < ShapeOnly || s.Treatment > ShapeAndRate {
			return fmt.Errorf("weight systematic %s: invalid treatment %d", s.Name, s.Treatment)
		}
	}
	for _, s := range c.File {
		if s.Name == "" || len(s.Samples) == 0 {
			return fmt.Errorf("file systematic %q needs a name and samples", s.Name)
		}
		for proc, samples := range s.Samples {
			if len(samples) != 1 && len(samples) != 2 {
				return fmt.Errorf("file systematic %s: process %s must list 1 or 2 samples", s.Name, proc)
			}
		}
	}
	return nil
}

// LoadCatalog reads a YAML systematics catalog from path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read systematics catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse systematics catalog %s: %w", path, err)
	}
	for i := range c.Rate {
		if c.Rate[i].PDF == "" {
			c.Rate[i].PDF = "lnN"
		}
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// DefaultCatalog returns the systematics of the top-width hypothesis test.
func DefaultCatalog() Catalog {
	expBlack := []string{"DY", "-W"}
	tt := []string{ScenarioPrefix + "tbart"}

	c := Catalog{
		Rate: []RateSyst{
			{Name: "lumi_13TeV", Value: []float64{1.025}, PDF: "lnN", Black: []string{"DY", "W"}},
			{Name: "DYnorm_" + ChannelPlaceholder, Value: []float64{1.30}, PDF: "lnN", White: []string{"DY"}},
			{Name: "Wnorm_th", Value: []float64{1.50}, PDF: "lnN", White: []string{"W"}},
			{Name: "tWnorm_th", Value: []float64{1.15}, PDF: "lnN", White: []string{ScenarioPrefix + "Singletop"}},
			{Name: "VVnorm_th", Value: []float64{1.20}, PDF: "lnN", White: []string{"Multiboson"}},
			{Name: "tbartVnorm_th", Value: []float64{1.30}, PDF: "lnN", White: []string{"tbartV"}},
		},
		Weight: []WeightSyst{
			{Name: "ees", Weights: []string{"ees"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "mes", Weights: []string{"mes"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "jer", Weights: []string{"jer"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "trig_" + ChannelPlaceholder, Weights: []string{"trig"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "sel_E", Weights: []string{"esel"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "sel_M", Weights: []string{"msel"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "ltag", Weights: []string{"ltag"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "btag", Weights: []string{"btag"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "bfrag", Weights: []string{"bfrag"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "semilep", Weights: []string{"semilep"}, Black: expBlack, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "pu", Weights: []string{"pu"}, Black: expBlack, Treatment: ShapeNormalized, NSigma: 1},
			{Name: "tttoppt", Weights: []string{"toppt"}, White: tt, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "ttMEqcdscale", Weights: []string{"gen3", "gen5", "gen6", "gen4", "gen8", "gen10"}, White: tt, Treatment: ShapeNormalized, NSigma: 1},
			{Name: "ttPDF", Weights: pdfReplicas(), White: tt, Treatment: ShapeOnly, NSigma: 1},
		},
		File: []FileSyst{
			{Name: "mtop", Samples: map[string][]string{"tbart": {"t#bar{t} m=171.5", "t#bar{t} m=173.5"}}, Treatment: ShapeNormalized, NSigma: 1. / 2.},
			{Name: "st_wid", Samples: map[string][]string{"Singletop": {"Single top m=169.5", "Single top m=175.5"}}, Treatment: ShapeNormalized, NSigma: 1. / 6.},
			{Name: "UE", Samples: map[string][]string{"tbart": {"t#bar{t} UEdn", "t#bar{t} UEup"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "CR", Samples: map[string][]string{"tbart": {"t#bar{t} QCDbased", "t#bar{t} gluon move"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "hdamp", Samples: map[string][]string{"tbart": {"t#bar{t} hdamp dn", "t#bar{t} hdamp up"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "ISR_tt", Samples: map[string][]string{"tbart": {"t#bar{t} isr dn", "t#bar{t} isr up"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "FSR_tt", Samples: map[string][]string{"tbart": {"t#bar{t} fsr dn", "t#bar{t} fsr up"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "ISR_st", Samples: map[string][]string{"Singletop": {"Single top isr dn", "Single top isr up"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "FSR_st", Samples: map[string][]string{"Singletop": {"Single top fsr dn", "Single top fsr up"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "tWttInterf", Samples: map[string][]string{"Singletop": {"Single top DS"}}, Treatment: ShapeAndRate, NSigma: 1},
			{Name: "tWMEScale", Samples: map[string][]string{"Singletop": {"Single top me dn", "Single top me up"}}, Treatment: ShapeAndRate, NSigma: 1},
		},
	}
	for i := 0; i < 29; i++ {
		name := fmt.Sprintf("jes%d", i)
		c.Weight = append(c.Weight, WeightSyst{Name: name, Weights: []string{name}, Black: []string{"DY"}, Treatment: ShapeAndRate, NSigma: 1})
	}
	return c
}

func pdfReplicas() []string {
	out := make([]string, 0, 100)
	for i := range 100 {
		out = append(out, fmt.Sprintf("gen%d", 11+i))
	}
	return out
}
