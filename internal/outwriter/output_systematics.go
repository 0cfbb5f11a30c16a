package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/olekukonko/tablewriter"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// systematicEntry is the flat view of one catalog item.
type systematicEntry struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Detail    string `json:"detail"`
	Processes string `json:"processes"`
}

func catalogEntries(c schema.Catalog) []systematicEntry {
	var out []systematicEntry
	for _, r := range c.Rate {
		values := make([]string, len(r.Value))
		for i, v := range r.Value {
			values[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		out = append(out, systematicEntry{
			Kind:      "rate",
			Name:      r.Name,
			Detail:    r.PDF + " " + strings.Join(values, "/"),
			Processes: inclusion(r.White, r.Black),
		})
	}
	for _, w := range c.Weight {
		out = append(out, systematicEntry{
			Kind:      "weight",
			Name:      w.Name,
			Detail:    fmt.Sprintf("treatment %d, %gσ, %s", w.Treatment, w.NSigma, strings.Join(w.Weights, ",")),
			Processes: inclusion(w.White, w.Black),
		})
	}
	for _, f := range c.File {
		out = append(out, systematicEntry{
			Kind:      "file",
			Name:      f.Name,
			Detail:    fmt.Sprintf("treatment %d, %gσ", f.Treatment, f.NSigma),
			Processes: strings.Join(f.Processes(), ","),
		})
	}
	return out
}

func inclusion(white, black []string) string {
	switch {
	case len(white) > 0:
		return strings.Join(white, ",")
	case len(black) > 0:
		return "all but " + strings.Join(black, ",")
	default:
		return "all"
	}
}

// WriteSystematicsResults outputs a catalog, dispatching based on the output format configured.
func WriteSystematicsResults(c schema.Catalog, cfg *contract.CommonConfig) error {
	entries := catalogEntries(c)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, c)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"kind", "name", "detail", "processes"}, func(cw *csv.Writer) error {
				for _, e := range entries {
					if err := cw.Write([]string{e.Kind, e.Name, e.Detail, e.Processes}); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	case schema.MarkdownOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSystematicsMarkdown(w, entries)
		}, "Wrote Markdown")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for systematics")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSystematicsTable(w, entries, cfg)
		}, "Wrote table")
	}
}

func writeSystematicsTable(w io.Writer, entries []systematicEntry, cfg *contract.CommonConfig) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Kind", "Name", "Detail", "Processes"})
	width := getMaxTableNameWidth(cfg, 40)
	var data [][]string
	for _, e := range entries {
		data = append(data, []string{e.Kind, e.Name, contract.TruncatePath(e.Detail, width), contract.TruncatePath(e.Processes, width)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d systematics\n", header("📋", "Catalog", cfg), len(entries))
	return err
}

func writeSystematicsMarkdown(w io.Writer, entries []systematicEntry) error {
	md := markdown.NewMarkdown(w)
	md.H1("Systematics")
	md.PlainText("")
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Kind, "`" + e.Name + "`", e.Detail, e.Processes})
	}
	md.Table(markdown.TableSet{Header: []string{"Kind", "Name", "Detail", "Processes"}, Rows: rows})
	return md.Build()
}
