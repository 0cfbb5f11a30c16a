package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// WriteCardResults outputs a parsed datacard, dispatching based on the output format configured.
func WriteCardResults(card schema.Datacard, cfg *contract.CommonConfig) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, card)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCardCSV(w, card)
		}, "Wrote CSV")
	case schema.MarkdownOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCardMarkdown(w, card)
		}, "Wrote Markdown")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for datacards")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCardTable(w, card, cfg)
		}, "Wrote table")
	}
}

// processHeaders returns "name (index)" for every process column.
func processHeaders(card schema.Datacard) []string {
	out := make([]string, len(card.Processes))
	for i, p := range card.Processes {
		out[i] = fmt.Sprintf("%s (%d)", p.Name, p.Index)
	}
	return out
}

// writeCardTable prints the process block and the nuisance rows as two tables.
func writeCardTable(w io.Writer, card schema.Datacard, cfg *contract.CommonConfig) error {
	if _, err := fmt.Fprintf(w, "%s: %s\n", header("🃏", "Datacard", cfg), card.Path); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Bins: %s  Observation: %s\n", strings.Join(card.Bins, ","), strings.Join(card.Observations, ",")); err != nil {
		return err
	}
	for _, s := range card.Shapes {
		if _, err := fmt.Fprintf(w, "Shapes: %s %s -> %s %s\n", s.Process, s.Channel, s.File, s.Pattern); err != nil {
			return err
		}
	}

	procs := tablewriter.NewWriter(w)
	procs.Header([]string{"Bin", "Process", "Index", "Rate", "Label"})
	procs.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, p := range card.Processes {
		data = append(data, []string{p.Bin, p.Name, strconv.Itoa(p.Index), fmtYield(p.Rate), yieldLabel(p.Rate, cfg)})
	}
	if err := procs.Bulk(data); err != nil {
		return err
	}
	if err := procs.Render(); err != nil {
		return err
	}

	if len(card.Systematics) > 0 {
		systs := tablewriter.NewWriter(w)
		systs.Header(append([]string{"Nuisance", "Type"}, processHeaders(card)...))
		nameWidth := getMaxTableNameWidth(cfg, 12*len(card.Processes))
		data = data[:0]
		for _, s := range card.Systematics {
			row := []string{contract.TruncatePath(s.Name, nameWidth), s.Type}
			row = append(row, s.Values...)
			data = append(data, row)
		}
		if err := systs.Bulk(data); err != nil {
			return err
		}
		if err := systs.Render(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d processes (%d signal), %d nuisances, %d extra lines\n",
		len(card.Processes), len(card.Signals()), len(card.Systematics), len(card.Extra))
	return err
}

// writeCardCSV writes one record per nuisance and process column.
func writeCardCSV(w io.Writer, card schema.Datacard) error {
	header := []string{"nuisance", "type", "process", "index", "value"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, p := range card.Processes {
			if err := cw.Write([]string{"rate", "", p.Name, strconv.Itoa(p.Index), fmtYield(p.Rate)}); err != nil {
				return err
			}
		}
		for _, s := range card.Systematics {
			for i, v := range s.Values {
				proc, idx := "", ""
				if i < len(card.Processes) {
					proc = card.Processes[i].Name
					idx = strconv.Itoa(card.Processes[i].Index)
				}
				if err := cw.Write([]string{s.Name, s.Type, proc, idx, v}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeCardMarkdown writes the card as a markdown report.
func writeCardMarkdown(w io.Writer, card schema.Datacard) error {
	md := markdown.NewMarkdown(w)
	md.H1("Datacard")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Path", "`" + card.Path + "`"},
			{"Bins", strings.Join(card.Bins, ", ")},
			{"Observation", strings.Join(card.Observations, ", ")},
			{"Nuisances", strconv.Itoa(len(card.Systematics))},
		},
	})
	md.PlainText("")

	md.H2("Processes")
	md.PlainText("")
	rows := make([][]string, 0, len(card.Processes))
	for _, p := range card.Processes {
		rows = append(rows, []string{p.Bin, p.Name, strconv.Itoa(p.Index), fmtYield(p.Rate)})
	}
	md.Table(markdown.TableSet{Header: []string{"Bin", "Process", "Index", "Rate"}, Rows: rows})
	md.PlainText("")

	if len(card.Systematics) > 0 {
		md.H2("Nuisances")
		md.PlainText("")
		rows = rows[:0]
		for _, s := range card.Systematics {
			rows = append(rows, append([]string{s.Name, s.Type}, s.Values...))
		}
		md.Table(markdown.TableSet{Header: append([]string{"Nuisance", "Type"}, processHeaders(card)...), Rows: rows})
		md.PlainText("")
	}

	if len(card.Extra) > 0 {
		md.H2("Extra")
		md.PlainText("")
		md.BulletList(card.Extra...)
	}
	return md.Build()
}
