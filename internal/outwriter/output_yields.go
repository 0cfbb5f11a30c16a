package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/parquet"
	"github.com/topljets/cardgen/schema"
)

// WriteYieldResults outputs the yields of a run, dispatching based on the output format configured.
func WriteYieldResults(summary schema.GenerationSummary, cfg *contract.CommonConfig, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYieldsCSV(w, summary)
		}, "Wrote CSV")
	case schema.MarkdownOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYieldsMarkdown(w, summary)
		}, "Wrote Markdown")
	case schema.ParquetOut:
		return writeYieldsParquet(summary, cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYieldsTable(w, summary, cfg, duration)
		}, "Wrote table")
	}
}

// yieldRows flattens a summary into one row per card column.
func yieldRows(summary schema.GenerationSummary) [][]string {
	var rows [][]string
	for _, c := range summary.Cards {
		for _, p := range c.Processes {
			rows = append(rows, []string{c.Category, c.Card, p.Name, strconv.Itoa(p.Index), fmtYield(p.Yield)})
		}
	}
	return rows
}

// writeYieldsTable generates and writes the human-readable table.
func writeYieldsTable(w io.Writer, summary schema.GenerationSummary, cfg *contract.CommonConfig, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Category", "Card", "Process", "Index", "Yield", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg, 60)
	var data [][]string
	totalCols := 0
	for _, c := range summary.Cards {
		card := contract.TruncatePath(filepath.Base(c.Card), nameWidth)
		for _, p := range c.Processes {
			data = append(data, []string{
				c.Category,
				card,
				p.Name,
				strconv.Itoa(p.Index),
				fmtYield(p.Yield),
				yieldLabel(p.Yield, cfg),
			})
		}
		totalCols += len(c.Processes)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s: %d cards, %d process columns in %s\n",
		header("📦", "Generated", cfg), len(summary.Cards), totalCols, summary.OutputDir); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Run %s (%s) completed in %v\n", summary.RunUUID, summary.Command, duration)
	return err
}

// writeYieldsCSV writes one CSV record per card column.
func writeYieldsCSV(w io.Writer, summary schema.GenerationSummary) error {
	header := []string{"category", "card", "process", "index", "yield", "label"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, c := range summary.Cards {
			for _, p := range c.Processes {
				rec := []string{c.Category, c.Card, p.Name, strconv.Itoa(p.Index), fmtYield(p.Yield), contract.GetPlainLabel(p.Yield)}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeYieldsMarkdown writes a per-card markdown report.
func writeYieldsMarkdown(w io.Writer, summary schema.GenerationSummary) error {
	md := markdown.NewMarkdown(w)
	md.H1(fmt.Sprintf("Datacards for %s", summary.Command))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + summary.RunUUID + "`"},
			{"Output", "`" + summary.OutputDir + "`"},
			{"Cards", strconv.Itoa(len(summary.Cards))},
		},
	})
	md.PlainText("")

	for _, c := range summary.Cards {
		md.H2(c.Category)
		md.PlainText("")
		md.PlainText(fmt.Sprintf("Card `%s`, observation %.1f, %d systematics.", c.Card, c.Observed, c.Systematics))
		md.PlainText("")
		rows := make([][]string, 0, len(c.Processes))
		for _, p := range c.Processes {
			rows = append(rows, []string{p.Name, strconv.Itoa(p.Index), fmtYield(p.Yield), contract.GetPlainLabel(p.Yield)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Process", "Index", "Yield", "Label"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return md.Build()
}

// writeYieldsParquet stores the yields with the same layout as the run export.
func writeYieldsParquet(summary schema.GenerationSummary, outputFile string) error {
	if outputFile == "" {
		return errors.New("parquet output requires --output-file")
	}
	now := time.Now()
	var rows []parquet.CardYield
	for _, c := range summary.Cards {
		for _, p := range c.Processes {
			rows = append(rows, parquet.CardYield{
				Card:       c.Card,
				Category:   c.Category,
				Process:    p.Name,
				ProcIndex:  int32(p.Index),
				Yield:      p.Yield,
				RecordedAt: now,
			})
		}
	}
	if err := parquet.WriteCardYieldsParquet(rows, outputFile); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", outputFile)
	return nil
}
