// Package hist provides the one-dimensional histogram value used by the
// datacard generators. Bin indices follow the ROOT convention: index 0 is the
// underflow, 1..NBins() are the regular bins and NBins()+1 is the overflow.
package hist

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrBinningMismatch is returned by binary operations on histograms with different binning.
var ErrBinningMismatch = errors.New("histograms have different binning")

// Hist is a 1-D histogram with per-bin sum of weights and sum of squared weights.
type Hist struct {
	Name    string
	Title   string
	Edges   []float64 // NBins()+1 bin edges
	Content []float64 // NBins()+2 entries including flow bins
	SumW2   []float64 // NBins()+2 entries including flow bins
}

// New creates an empty histogram with nbins equal-width bins in [lo, hi).
func New(name, title string, nbins int, lo, hi float64) *Hist {
	if nbins < 1 {
		nbins = 1
	}
	edges := make([]float64, nbins+1)
	width := (hi - lo) / float64(nbins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[nbins] = hi
	return NewFromEdges(name, title, edges)
}

// NewFromEdges creates an empty histogram with the given bin edges.
// The edges slice is copied.
func NewFromEdges(name, title string, edges []float64) *Hist {
	n := len(edges) - 1
	if n < 1 {
		panic(fmt.Sprintf("hist: %s needs at least two edges, got %d", name, len(edges)))
	}
	return &Hist{
		Name:    name,
		Title:   title,
		Edges:   append([]float64(nil), edges...),
		Content: make([]float64, n+2),
		SumW2:   make([]float64, n+2),
	}
}

// NBins returns the number of regular bins.
func (h *Hist) NBins() int { return len(h.Edges) - 1 }

// Min returns the lower edge of the first bin.
func (h *Hist) Min() float64 { return h.Edges[0] }

// Max returns the upper edge of the last bin.
func (h *Hist) Max() float64 { return h.Edges[len(h.Edges)-1] }

// Clone returns a deep copy of h under a new name. An empty name keeps the original one.
func (h *Hist) Clone(name string) *Hist {
	if name == "" {
		name = h.Name
	}
	return &Hist{
		Name:    name,
		Title:   h.Title,
		Edges:   append([]float64(nil), h.Edges...),
		Content: append([]float64(nil), h.Content...),
		SumW2:   append([]float64(nil), h.SumW2...),
	}
}

// Integral returns the sum of the regular bins.
func (h *Hist) Integral() float64 {
	return h.IntegralRange(1, h.NBins())
}

// IntegralRange returns the sum of bins lo..hi inclusive, clamped to the flow bins.
func (h *Hist) IntegralRange(lo, hi int) float64 {
	lo = max(lo, 0)
	hi = min(hi, h.NBins()+1)
	if hi < lo {
		return 0
	}
	return floats.Sum(h.Content[lo : hi+1])
}

// IntegralAll returns the sum of all bins including underflow and overflow.
func (h *Hist) IntegralAll() float64 {
	return h.IntegralRange(0, h.NBins()+1)
}

// Scale multiplies every bin by c; squared weights scale with c².
func (h *Hist) Scale(c float64) {
	floats.Scale(c, h.Content)
	floats.Scale(c*c, h.SumW2)
}

// Add adds the bins of o to h.
func (h *Hist) Add(o *Hist) error {
	if !h.SameBinning(o) {
		return fmt.Errorf("add to %s: %w", h.Name, ErrBinningMismatch)
	}
	floats.Add(h.Content, o.Content)
	floats.Add(h.SumW2, o.SumW2)
	return nil
}

// Divide divides h by o bin by bin. Bins where o is empty are set to zero.
// Errors are propagated assuming uncorrelated histograms.
func (h *Hist) Divide(o *Hist) error {
	if !h.SameBinning(o) {
		return fmt.Errorf("divide %s: %w", h.Name, ErrBinningMismatch)
	}
	for i := range h.Content {
		c1, c2 := h.Content[i], o.Content[i]
		if c2 == 0 {
			h.Content[i], h.SumW2[i] = 0, 0
			continue
		}
		c22 := c2 * c2
		h.SumW2[i] = (h.SumW2[i]*c22 + o.SumW2[i]*c1*c1) / (c22 * c22)
		h.Content[i] = c1 / c2
	}
	return nil
}

// Reset clears contents and errors, keeping name and binning.
func (h *Hist) Reset() {
	clear(h.Content)
	clear(h.SumW2)
}

// SetBin sets the content of bin i. Out-of-range indices are ignored.
func (h *Hist) SetBin(i int, v float64) {
	if i < 0 || i >= len(h.Content) {
		return
	}
	h.Content[i] = v
}

// SetError sets the error of bin i.
func (h *Hist) SetError(i int, e float64) {
	if i < 0 || i >= len(h.SumW2) {
		return
	}
	h.SumW2[i] = e * e
}

// Value returns the content of bin i, or 0 when out of range.
func (h *Hist) Value(i int) float64 {
	if i < 0 || i >= len(h.Content) {
		return 0
	}
	return h.Content[i]
}

// Error returns the statistical error of bin i.
func (h *Hist) Error(i int) float64 {
	if i < 0 || i >= len(h.SumW2) {
		return 0
	}
	return math.Sqrt(h.SumW2[i])
}

// FindBin returns the bin index holding x, 0 for underflow and NBins()+1 for overflow.
func (h *Hist) FindBin(x float64) int {
	n := h.NBins()
	switch {
	case x < h.Edges[0]:
		return 0
	case x >= h.Edges[n]:
		return n + 1
	}
	return sort.Search(len(h.Edges), func(i int) bool { return h.Edges[i] > x })
}

// Fill adds weight w at x. NaN values are dropped.
func (h *Hist) Fill(x, w float64) {
	if math.IsNaN(x) {
		return
	}
	i := h.FindBin(x)
	h.Content[i] += w
	h.SumW2[i] += w * w
}

// Rebin merges groups of k adjacent bins. Trailing bins that do not fill a
// complete group are moved to the overflow. k <= 1 leaves h unchanged.
func (h *Hist) Rebin(k int) {
	n := h.NBins()
	if k <= 1 || k > n {
		return
	}
	nn := n / k
	edges := make([]float64, nn+1)
	content := make([]float64, nn+2)
	sumw2 := make([]float64, nn+2)

	content[0], sumw2[0] = h.Content[0], h.SumW2[0]
	for j := 0; j < nn; j++ {
		edges[j] = h.Edges[j*k]
		for i := 1 + j*k; i <= (j+1)*k; i++ {
			content[j+1] += h.Content[i]
			sumw2[j+1] += h.SumW2[i]
		}
	}
	edges[nn] = h.Edges[nn*k]
	for i := nn*k + 1; i <= n+1; i++ {
		content[nn+1] += h.Content[i]
		sumw2[nn+1] += h.SumW2[i]
	}
	h.Edges, h.Content, h.SumW2 = edges, content, sumw2
}

// SameBinning reports whether h and o have identical bin edges.
func (h *Hist) SameBinning(o *Hist) bool {
	if o == nil || len(h.Edges) != len(o.Edges) {
		return false
	}
	for i, e := range h.Edges {
		if math.Abs(e-o.Edges[i]) > 1e-9*math.Max(1, math.Abs(e)) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (h *Hist) String() string {
	return fmt.Sprintf("%s (%d bins in [%g,%g], integral %g)", h.Name, h.NBins(), h.Min(), h.Max(), h.Integral())
}
