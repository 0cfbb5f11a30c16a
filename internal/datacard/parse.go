package datacard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/topljets/cardgen/schema"
)

// ErrMalformed is returned for datacards whose process block is inconsistent.
var ErrMalformed = errors.New("malformed datacard")

// systematicTypes are the pdf keywords recognised as nuisance rows.
var systematicTypes = []string{"lnN", "lnU", "gmN", "shape", "shape?", "shapeN", "shapeN2", "shapeU", "trG", "unif", "dFD", "dFD2", "param"}

// ParseFile reads and parses the datacard at path.
func ParseFile(path string) (schema.Datacard, error) {
	f, err := os.Open(path)
	if err != nil {
		return schema.Datacard{}, err
	}
	defer func() { _ = f.Close() }()
	card, err := Parse(f)
	if err != nil {
		return card, fmt.Errorf("%s: %w", path, err)
	}
	card.Path = path
	return card, nil
}

// Parse reads a Combine text datacard.
func Parse(r io.Reader) (schema.Datacard, error) {
	var (
		card      schema.Datacard
		colBins   []string
		names     []string
		indices   []int
		rates     []float64
		seenNames bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if c := strings.TrimSpace(strings.TrimPrefix(line, "#")); c != "" {
				card.Header = append(card.Header, c)
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "imax", "jmax", "kmax":
			continue
		case "shapes":
			if len(fields) < 4 {
				return card, fmt.Errorf("%w: line %d: short shapes line", ErrMalformed, lineNo)
			}
			sl := schema.ShapesLine{Process: fields[1], Channel: fields[2], File: fields[3]}
			if len(fields) > 4 {
				sl.Pattern = fields[4]
			}
			if len(fields) > 5 {
				sl.SystPattern = fields[5]
			}
			card.Shapes = append(card.Shapes, sl)
			continue
		case "bin":
			if card.Observations == nil && !seenNames {
				card.Bins = fields[1:]
			} else {
				colBins = fields[1:]
			}
			continue
		case "observation":
			card.Observations = fields[1:]
			continue
		case "process":
			if !seenNames {
				names = fields[1:]
				seenNames = true
				continue
			}
			for _, f := range fields[1:] {
				i, err := strconv.Atoi(f)
				if err != nil {
					return card, fmt.Errorf("%w: line %d: process index %q", ErrMalformed, lineNo, f)
				}
				indices = append(indices, i)
			}
			continue
		case "rate":
			for _, f := range fields[1:] {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return card, fmt.Errorf("%w: line %d: rate %q", ErrMalformed, lineNo, f)
				}
				rates = append(rates, v)
			}
			continue
		}

		if len(fields) >= 2 && slices.Contains(systematicTypes, fields[1]) {
			row := schema.SystematicRow{Name: fields[0], Type: fields[1]}
			values := fields[2:]
			if fields[1] == "gmN" && len(values) > 0 {
				row.Type += " " + values[0]
				values = values[1:]
			}
			if fields[1] != "param" && len(names) > 0 && len(values) != len(names) {
				return card, fmt.Errorf("%w: line %d: %s has %d values for %d processes",
					ErrMalformed, lineNo, row.Name, len(values), len(names))
			}
			row.Values = values
			card.Systematics = append(card.Systematics, row)
			continue
		}
		card.Extra = append(card.Extra, line)
	}
	if err := sc.Err(); err != nil {
		return card, err
	}

	if len(indices) != len(names) || (len(rates) > 0 && len(rates) != len(names)) {
		return card, fmt.Errorf("%w: %d processes, %d indices, %d rates", ErrMalformed, len(names), len(indices), len(rates))
	}
	if len(colBins) > 0 && len(colBins) != len(names) {
		return card, fmt.Errorf("%w: %d bin labels for %d processes", ErrMalformed, len(colBins), len(names))
	}
	for i, n := range names {
		col := schema.ProcessColumn{Name: n, Index: indices[i]}
		if len(colBins) > 0 {
			col.Bin = colBins[i]
		}
		if len(rates) > 0 {
			col.Rate = rates[i]
		}
		card.Processes = append(card.Processes, col)
	}
	return card, nil
}

// Summarise reduces a parsed card to its yields. Shape-driven rates (-1)
// are reported as is.
func Summarise(category, path string, card schema.Datacard) schema.CardSummary {
	s := schema.CardSummary{Category: category, Card: path, Systematics: len(card.Systematics)}
	if len(card.Observations) > 0 {
		s.Observed, _ = strconv.ParseFloat(card.Observations[0], 64)
	}
	for _, p := range card.Processes {
		s.Processes = append(s.Processes, schema.ProcessYield{Name: p.Name, Index: p.Index, Yield: p.Rate})
	}
	return s
}
