package hist

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Floors applied to derived variations so Combine never sees empty or negative bins.
const (
	ReplicaFloor  = 1e-4 // down variation of mean±RMS and symmetric mirroring
	BinByBinFloor = 1e-3 // down variation of bin-by-bin statistical shapes
	TemplateFloor = 1e-6 // empty bins of workspace templates
)

// MaxRatioRelError is the largest relative error on an up/nominal ratio that
// is still trusted when mirroring a one-sided variation.
const MaxRatioRelError = 0.5

// BinVariation is a single-bin statistical variation of a histogram.
type BinVariation struct {
	Bin  int
	Up   *Hist
	Down *Hist
}

// NormalizeTo scales h so that its regular-bin integral equals n.
// It reports false and leaves h untouched when the integral is zero.
func NormalizeTo(h *Hist, n float64) bool {
	in := h.Integral()
	if in == 0 {
		return false
	}
	h.Scale(n / in)
	return true
}

// NormalizeAllTo is NormalizeTo using the integral over all bins including flows.
func NormalizeAllTo(h *Hist, n float64) bool {
	in := h.IntegralAll()
	if in == 0 {
		return false
	}
	h.Scale(n / in)
	return true
}

func checkReplicas(replicas []*Hist) error {
	if len(replicas) == 0 {
		return fmt.Errorf("no replicas given")
	}
	for _, r := range replicas[1:] {
		if !replicas[0].SameBinning(r) {
			return fmt.Errorf("replica %s: %w", r.Name, ErrBinningMismatch)
		}
	}
	return nil
}

// replicaColumns returns, for every bin including flows, the values of that bin across replicas.
func replicaColumns(replicas []*Hist) [][]float64 {
	nb := len(replicas[0].Content)
	cols := make([][]float64, nb)
	for i := range cols {
		cols[i] = make([]float64, len(replicas))
		for j, r := range replicas {
			cols[i][j] = r.Content[i]
		}
	}
	return cols
}

// emptyLike returns an empty histogram with the binning of h, named after h plus suffix.
func emptyLike(h *Hist, suffix string) *Hist {
	return NewFromEdges(h.Name+suffix, h.Title, h.Edges)
}

// setPoisson sets the error of every bin to the square root of its absolute content.
func setPoisson(h *Hist) {
	for i, v := range h.Content {
		h.SumW2[i] = math.Abs(v)
	}
}

// Envelope returns the per-bin maximum and minimum over the replicas, flow bins included.
func Envelope(replicas []*Hist) (up, down *Hist, err error) {
	if err := checkReplicas(replicas); err != nil {
		return nil, nil, err
	}
	up, down = emptyLike(replicas[0], "up"), emptyLike(replicas[0], "dn")
	for i, col := range replicaColumns(replicas) {
		up.Content[i] = floats.Max(col)
		down.Content[i] = floats.Min(col)
	}
	setPoisson(up)
	setPoisson(down)
	return up, down, nil
}

// MeanRMS returns mean plus and minus the population standard deviation of
// the replicas in every bin. The down variation is floored at ReplicaFloor.
func MeanRMS(replicas []*Hist) (up, down *Hist, err error) {
	if err := checkReplicas(replicas); err != nil {
		return nil, nil, err
	}
	up, down = emptyLike(replicas[0], "up"), emptyLike(replicas[0], "dn")
	for i, col := range replicaColumns(replicas) {
		mean, variance := stat.PopMeanVariance(col, nil)
		rms := math.Sqrt(variance)
		up.Content[i] = mean + rms
		down.Content[i] = math.Max(mean-rms, ReplicaFloor)
	}
	setPoisson(up)
	setPoisson(down)
	return up, down, nil
}

// MirrorRatio builds the down variation of a one-sided up variation as
// nominal/(up/nominal). Regular bins where the ratio is zero keep the up
// content; bins where the ratio's relative error exceeds MaxRatioRelError
// keep the nominal content.
func MirrorRatio(nom, up *Hist) (*Hist, error) {
	ratio := up.Clone("ratio")
	if err := ratio.Divide(nom); err != nil {
		return nil, err
	}
	down := up.Clone("")
	for i := 1; i <= nom.NBins(); i++ {
		r := ratio.Content[i]
		if r == 0 {
			continue
		}
		if math.Abs(ratio.Error(i)/r) > MaxRatioRelError {
			down.Content[i] = nom.Content[i]
		} else {
			down.Content[i] = nom.Content[i] / r
		}
	}
	return down, nil
}

// MirrorSymmetric builds the down variation as 2·nominal − up, floored at ReplicaFloor.
func MirrorSymmetric(nom, up *Hist) (*Hist, error) {
	if !nom.SameBinning(up) {
		return nil, fmt.Errorf("mirror %s: %w", up.Name, ErrBinningMismatch)
	}
	down := up.Clone("")
	for i := range down.Content {
		down.Content[i] = math.Max(2*nom.Content[i]-up.Content[i], ReplicaFloor)
	}
	return down, nil
}

// CopyNominal uses the nominal shape as down variation of up.
func CopyNominal(nom, up *Hist) (*Hist, error) {
	if !nom.SameBinning(up) {
		return nil, fmt.Errorf("mirror %s: %w", up.Name, ErrBinningMismatch)
	}
	return nom.Clone(up.Name), nil
}

// FloorEmpty sets every regular bin with non-positive content to v.
func FloorEmpty(h *Hist, v float64) {
	for i := 1; i <= h.NBins(); i++ {
		if h.Content[i] <= 0 {
			h.Content[i] = v
		}
	}
}

// BinByBin returns one up/down variation per regular bin whose relative
// statistical error is at least threshold. Empty bins are skipped. The
// variations are named by the caller.
func BinByBin(h *Hist, threshold float64) []BinVariation {
	var out []BinVariation
	for i := 1; i <= h.NBins(); i++ {
		val, unc := h.Value(i), h.Error(i)
		if val == 0 || math.Abs(unc/val) < threshold {
			continue
		}
		up, down := h.Clone(""), h.Clone("")
		up.Content[i] = val + unc
		down.Content[i] = math.Max(val-unc, BinByBinFloor)
		out = append(out, BinVariation{Bin: i, Up: up, Down: down})
	}
	return out
}

// ScaledRatio returns the relative yield shifts of a variation pair with
// respect to the nominal yield n, ordered as (lower, higher). ok is false
// when n is zero.
func ScaledRatio(n, nUp, nDn float64) (lo, hi float64, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	return math.Min(nUp/n, nDn/n), math.Max(nUp/n, nDn/n), true
}
