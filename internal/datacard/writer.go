package datacard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Unaffected marks a process not touched by a systematic.
const Unaffected = "-"

// Separator is the line between datacard blocks.
var Separator = strings.Repeat("-", 50)

// Column is one process column of a datacard.
type Column struct {
	Name  string
	Index int
	Rate  float64
}

// NewColumns orders the processes as main signals, alternative signals and
// backgrounds, numbering them so that every signal has a non-positive index.
// rates maps each process to its expected yield.
func NewColumns(mainSignals, altSignals, backgrounds []string, rates map[string]float64) []Column {
	idx := 1 - len(mainSignals) - len(altSignals)
	var cols []Column
	for _, group := range [][]string{mainSignals, altSignals, backgrounds} {
		for _, p := range group {
			cols = append(cols, Column{Name: p, Index: idx, Rate: rates[p]})
			idx++
		}
	}
	return cols
}

// Values returns one entry per column, using Unaffected where entry returns "".
func Values(cols []Column, entry func(proc string) string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		v := entry(c.Name)
		if v == "" {
			v = Unaffected
		}
		out[i] = v
	}
	return out
}

// Writer emits a single-bin shape datacard. Errors are sticky: after the
// first failed write every method is a no-op and Err reports the failure.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a datacard writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (dw *Writer) printf(format string, args ...any) {
	if dw.err != nil {
		return
	}
	_, dw.err = fmt.Fprintf(dw.w, format, args...)
}

// Err returns the first write error.
func (dw *Writer) Err() error { return dw.err }

// Header writes the comment block followed by the imax/jmax/kmax lines.
func (dw *Writer) Header(comments ...string) {
	dw.printf("#\n")
	for _, c := range comments {
		dw.printf("# %s\n", c)
	}
	dw.printf("#\n")
	dw.printf("imax *\njmax *\nkmax *\n")
	dw.Separator()
}

// Separator writes a block separator.
func (dw *Writer) Separator() {
	dw.printf("%s\n", Separator)
}

// Shapes writes the shapes line mapping every process to dir/$PROCESS in
// file, with systematic variations under dir_$SYSTEMATIC/$PROCESS.
func (dw *Writer) Shapes(file, dir string) {
	dw.printf("shapes *        * %s %s/$PROCESS %s_$SYSTEMATIC/$PROCESS\n", file, dir, dir)
	dw.Separator()
}

// Observation writes the single-bin observation block.
func (dw *Writer) Observation(obs float64) {
	dw.printf("bin 1\n")
	dw.printf("observation %3.1f\n", obs)
	dw.Separator()
}

// Processes writes the bin, process name, process index and rate lines.
func (dw *Writer) Processes(cols []Column) {
	label := func(l string) { dw.printf("\t\t\t %16s", l) }

	label("bin")
	for range cols {
		dw.printf("%15s", "1")
	}
	dw.printf("\n")

	label("process")
	for _, c := range cols {
		dw.printf("%15s", c.Name)
	}
	dw.printf("\n")

	label("process")
	for _, c := range cols {
		dw.printf("%15s", strconv.Itoa(c.Index))
	}
	dw.printf("\n")

	label("rate")
	for _, c := range cols {
		dw.printf("%15s", fmt.Sprintf("%3.2f", c.Rate))
	}
	dw.printf("\n")
	dw.Separator()
}

// Row writes a systematic row.
func (dw *Writer) Row(name, pdf string, values []string) {
	dw.printf("%32s %8s", name, pdf)
	dw.values(values)
}

// ShapeRow writes a bin-by-bin shape row, with the pdf column unpadded.
func (dw *Writer) ShapeRow(name string, values []string) {
	dw.printf("%32s shape", name)
	dw.values(values)
}

func (dw *Writer) values(values []string) {
	for _, v := range values {
		dw.printf("%15s", v)
	}
	dw.printf("\n")
}
