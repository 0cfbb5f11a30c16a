// Package plots draws validation plots of the generated shapes.
package plots

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
)

// Formats are the file extensions every plot is saved with.
var Formats = []string{"png", "pdf"}

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

var (
	black = color.RGBA{A: 255}
	red   = color.RGBA{R: 204, G: 0, B: 0, A: 255}
	blue  = color.RGBA{R: 0, G: 76, B: 204, A: 255}
)

func line(h *hist.Hist, c color.Color, dashed bool) *hplot.H1D {
	p := hplot.NewH1D(rootio.ToHBook(h))
	p.LineStyle.Color = c
	p.LineStyle.Width = vg.Points(1.5)
	if dashed {
		p.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	}
	return p
}

func save(p *hplot.Plot, outDir, name string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory %s: %w", outDir, err)
	}
	var files []string
	for _, ext := range Formats {
		path := filepath.Join(outDir, name+"."+ext)
		if err := p.Save(width, height, path); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func newPlot(title, xlabel string) *hplot.Plot {
	p := hplot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Events"
	p.Legend.Top = true
	return p
}

// ShapeUncertainty overlays a nominal shape with its up and down variations
// and saves the plot as outDir/name in every format. It returns the files written.
func ShapeUncertainty(nominal, up, down *hist.Hist, title, outDir, name string) ([]string, error) {
	if nominal == nil || up == nil || down == nil {
		return nil, fmt.Errorf("shape uncertainty plot %s: missing histogram", name)
	}
	if !nominal.SameBinning(up) || !nominal.SameBinning(down) {
		return nil, fmt.Errorf("shape uncertainty plot %s: %w", name, hist.ErrBinningMismatch)
	}

	p := newPlot(title, nominal.Title)
	nom := line(nominal, black, false)
	u := line(up, red, false)
	d := line(down, blue, true)
	p.Add(nom, u, d)
	p.Legend.Add("nominal", nom)
	p.Legend.Add("+1σ", u)
	p.Legend.Add("-1σ", d)
	return save(p, outDir, name)
}

// Closure compares a reference shape with its replacement, both drawn
// normalised to unit area.
func Closure(ref, repl *hist.Hist, title, outDir, name string) ([]string, error) {
	if ref == nil || repl == nil {
		return nil, fmt.Errorf("closure plot %s: missing histogram", name)
	}
	if !ref.SameBinning(repl) {
		return nil, fmt.Errorf("closure plot %s: %w", name, hist.ErrBinningMismatch)
	}

	a := ref.Clone("")
	b := repl.Clone("")
	hist.NormalizeTo(a, 1)
	hist.NormalizeTo(b, 1)

	p := newPlot(title, ref.Title)
	p.Y.Label.Text = "PDF"
	pa := line(a, black, false)
	pb := line(b, red, true)
	p.Add(pa, pb)
	p.Legend.Add(ref.Name, pa)
	p.Legend.Add(repl.Name, pb)
	return save(p, outDir, name)
}

// Ratio draws num/den per bin with propagated errors.
func Ratio(num, den *hist.Hist, title, outDir, name string) ([]string, error) {
	r := num.Clone(name)
	if err := r.Divide(den); err != nil {
		return nil, fmt.Errorf("ratio plot %s: %w", name, err)
	}
	p := newPlot(title, num.Title)
	p.Y.Label.Text = "ratio"
	h := hplot.NewH1D(rootio.ToHBook(r), hplot.WithYErrBars(true))
	h.LineStyle.Color = black
	p.Add(h, hplot.NewGrid())
	return save(p, outDir, name)
}
