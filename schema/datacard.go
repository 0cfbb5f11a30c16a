package schema

// ShapesLine maps a process/channel pair to its histograms in a shapes file.
type ShapesLine struct {
	Process     string `json:"process"`
	Channel     string `json:"channel"`
	File        string `json:"file"`
	Pattern     string `json:"pattern,omitempty"`
	SystPattern string `json:"syst_pattern,omitempty"`
}

// ProcessColumn is one column of the process block of a datacard.
type ProcessColumn struct {
	Bin   string  `json:"bin"`
	Name  string  `json:"name"`
	Index int     `json:"index"`
	Rate  float64 `json:"rate"`
}

// SystematicRow is one nuisance row of a datacard, one value per process column.
type SystematicRow struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Datacard is the parsed content of a Combine text datacard.
type Datacard struct {
	Path         string          `json:"path,omitempty"`
	Header       []string        `json:"header,omitempty"`
	Shapes       []ShapesLine    `json:"shapes,omitempty"`
	Bins         []string        `json:"bins"`
	Observations []string        `json:"observations"`
	Processes    []ProcessColumn `json:"processes"`
	Systematics  []SystematicRow `json:"systematics"`
	Extra        []string        `json:"extra,omitempty"`
}

// Signals returns the process columns with a non-positive index.
func (d Datacard) Signals() []ProcessColumn {
	var out []ProcessColumn
	for _, p := range d.Processes {
		if p.Index <= 0 {
			out = append(out, p)
		}
	}
	return out
}

// Systematic returns the row with the given name.
func (d Datacard) Systematic(name string) (SystematicRow, bool) {
	for _, s := range d.Systematics {
		if s.Name == name {
			return s, true
		}
	}
	return SystematicRow{}, false
}

// ProcessYield is the expected yield of one process in a card.
type ProcessYield struct {
	Name  string  `json:"name"`
	Index int     `json:"index"`
	Yield float64 `json:"yield"`
}

// CardSummary summarises one generated datacard.
type CardSummary struct {
	Category    string         `json:"category"`
	Card        string         `json:"card"`
	Observed    float64        `json:"observed"`
	Processes   []ProcessYield `json:"processes"`
	Systematics int            `json:"systematics"`
}

// GenerationSummary summarises one generator run.
type GenerationSummary struct {
	RunUUID   string        `json:"run_uuid"`
	Command   string        `json:"command"`
	OutputDir string        `json:"output_dir"`
	Script    string        `json:"script,omitempty"`
	Cards     []CardSummary `json:"cards"`
}
