package rootio

import (
	"errors"
	"fmt"
	"math"

	"github.com/topljets/cardgen/internal/hist"
	"go-hep.org/x/hep/groot/rbase"
	"go-hep.org/x/hep/groot/rbytes"
	"go-hep.org/x/hep/groot/rcont"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/hbook"
)

// ErrRowNotFound is returned when a 2-D histogram has no Y row with the requested label.
var ErrRowNotFound = errors.New("row not found")

// h1Reader is the bin accessor set shared by the ROOT 1-D histogram types.
type h1Reader interface {
	rhist.H1
	NbinsX() int
	XBinLowEdge(int) float64
	XBinWidth(int) float64
	XBinContent(int) float64
	XBinError(int) float64
}

// h2Reader is the cell accessor set shared by the ROOT 2-D histogram types.
// XBinContent and XBinError take the global cell index ix + (nx+2)*iy.
type h2Reader interface {
	rhist.H2
	NbinsX() int
	NbinsY() int
	XBinLowEdge(int) float64
	XBinWidth(int) float64
	XBinContent(int) float64
	XBinError(int) float64
	YAxis() rhist.Axis
}

func xEdges(nx int, low, width func(int) float64) []float64 {
	edges := make([]float64, nx+1)
	for i := 1; i <= nx; i++ {
		edges[i-1] = low(i)
	}
	edges[nx] = low(nx) + width(nx)
	return edges
}

// FromROOT converts a ROOT 1-D histogram into a hist.Hist named name.
func FromROOT(name string, h h1Reader) *hist.Hist {
	n := h.NbinsX()
	out := hist.NewFromEdges(name, h.Title(), xEdges(n, h.XBinLowEdge, h.XBinWidth))
	for i := 0; i <= n+1; i++ {
		out.Content[i] = h.XBinContent(i)
		e := h.XBinError(i)
		out.SumW2[i] = e * e
	}
	return out
}

// RowFromROOT projects the Y row labelled label of a ROOT 2-D histogram onto
// its X axis, flow bins included.
func RowFromROOT(name string, h h2Reader, label string) (*hist.Hist, error) {
	iy, ok := axisLabels(h.YAxis())[label]
	if !ok || iy < 1 || iy > h.NbinsY() {
		return nil, fmt.Errorf("%s has no %q row: %w", h.Name(), label, ErrRowNotFound)
	}
	nx := h.NbinsX()
	out := hist.NewFromEdges(name, h.Title(), xEdges(nx, h.XBinLowEdge, h.XBinWidth))
	for ix := 0; ix <= nx+1; ix++ {
		cell := ix + (nx+2)*iy
		out.Content[ix] = h.XBinContent(cell)
		e := h.XBinError(cell)
		out.SumW2[ix] = e * e
	}
	return out, nil
}

// axisLabels maps the bin labels of ax to their bin numbers. ROOT keeps the
// bin number as the unique id of each label; labels without one are
// numbered by position.
func axisLabels(ax rhist.Axis) map[string]int {
	p := labelsMember(ax)
	if p == nil || *p == nil {
		return nil
	}
	labels := *p
	out := make(map[string]int, labels.Len())
	for i := 0; i < labels.Len(); i++ {
		obj := labels.At(i)
		named, ok := obj.(interface{ Name() string })
		if !ok {
			continue
		}
		bin := i + 1
		if u, ok := obj.(root.UIDer); ok && u.UID() > 0 {
			bin = int(u.UID())
		}
		out[named.Name()] = bin
	}
	return out
}

// labelsMember returns the fLabels field of a ROOT axis.
func labelsMember(ax rhist.Axis) **rcont.HashList {
	s, ok := ax.(rbytes.RSlicer)
	if !ok {
		return nil
	}
	for _, m := range s.RMembers() {
		if m.Name != "fLabels" {
			continue
		}
		if p, ok := m.Value.(**rcont.HashList); ok {
			return p
		}
	}
	return nil
}

// floatsMember returns the float64 array field called name of a ROOT object.
func floatsMember(s rbytes.RSlicer, name string) *[]float64 {
	for _, m := range s.RMembers() {
		if m.Name != name {
			continue
		}
		if p, ok := m.Value.(*[]float64); ok {
			return p
		}
	}
	return nil
}

// ToHBook converts h into an hbook histogram carrying the same bin sums,
// flow bins and name annotation.
func ToHBook(h *hist.Hist) *hbook.H1D {
	hh := hbook.NewH1DFromEdges(h.Edges)
	n := h.NBins()
	var total hbook.Dist0D
	for i := range hh.Binning.Bins {
		d := dist(h.Content[i+1], h.SumW2[i+1])
		hh.Binning.Bins[i].Dist.Dist = d
		total.N += d.N
		total.SumW += d.SumW
		total.SumW2 += d.SumW2
	}
	hh.Binning.Dist.Dist = total
	hh.Binning.Outflows[0].Dist = dist(h.Content[0], h.SumW2[0])
	hh.Binning.Outflows[1].Dist = dist(h.Content[n+1], h.SumW2[n+1])

	ann := hh.Annotation()
	ann["name"] = h.Name
	ann["title"] = h.Title
	return hh
}

// RowTable is a 2-D histogram holding one variation per labelled Y row,
// all rows sharing the X binning.
type RowTable struct {
	Name   string
	Labels []string
	Rows   []*hist.Hist
}

// ToROOT converts t into a ROOT TH2D with labelled Y bins.
func (t RowTable) ToROOT() (*rhist.H2D, error) {
	if len(t.Rows) == 0 || len(t.Rows) != len(t.Labels) {
		return nil, fmt.Errorf("row table %s needs one label per row (%d labels, %d rows)", t.Name, len(t.Labels), len(t.Rows))
	}
	ref := t.Rows[0]
	yedges := make([]float64, len(t.Rows)+1)
	for i := range yedges {
		yedges[i] = float64(i)
	}
	hh := hbook.NewH2DFromEdges(ref.Edges, yedges)
	hh.Annotation()["name"] = t.Name
	hh.Annotation()["title"] = t.Name
	h2 := rhist.NewH2DFrom(hh)

	content := floatsMember(h2, "fArray")
	sumw2 := floatsMember(h2, "fSumw2")
	if content == nil || sumw2 == nil {
		return nil, fmt.Errorf("row table %s: unexpected TH2D layout", t.Name)
	}
	nx := ref.NBins()
	for iy, row := range t.Rows {
		if !row.SameBinning(ref) {
			return nil, fmt.Errorf("row table %s, row %s: %w", t.Name, t.Labels[iy], hist.ErrBinningMismatch)
		}
		for ix := 0; ix <= nx+1; ix++ {
			cell := ix + (nx+2)*(iy+1)
			(*content)[cell] = row.Content[ix]
			(*sumw2)[cell] = row.SumW2[ix]
		}
	}

	objs := make([]root.Object, len(t.Labels))
	for i, l := range t.Labels {
		objs[i] = rbase.NewObjString(l)
	}
	labels := labelsMember(h2.YAxis())
	if labels == nil {
		return nil, fmt.Errorf("row table %s: axis without labels", t.Name)
	}
	*labels = &rcont.HashList{List: *rcont.NewList("", objs)}
	return h2, nil
}

// dist builds the weight moments of a bin; the entry count is the effective
// number of entries sumw²/sumw2.
func dist(sumw, sumw2 float64) hbook.Dist0D {
	d := hbook.Dist0D{SumW: sumw, SumW2: sumw2}
	if sumw2 > 0 {
		d.N = int64(math.Round(sumw * sumw / sumw2))
	}
	return d
}
