package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"go.uber.org/zap"
)

// Range of the random scale applied to injected pseudo-signals.
const (
	pseudoScaleMin = 0.99
	pseudoScaleMax = 1.01
)

// pseudoScaler draws the random scale factors of the injected signal.
type pseudoScaler struct {
	rng *rand.Rand
}

func newPseudoScaler(seed int64) *pseudoScaler {
	return &pseudoScaler{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (s *pseudoScaler) next() float64 {
	return pseudoScaleMin + (pseudoScaleMax-pseudoScaleMin)*s.rng.Float64()
}

// pseudoSignal reads the signal injected into the pseudo-data.
func (l *distLoader) pseudoSignal(ctx context.Context, cat string) (map[string]*hist.Hist, error) {
	cfg := l.cfg
	switch {
	case cfg.PseudoDataFromSim != "" && cfg.SystInput != "":
		filter := strings.ReplaceAll(cfg.PseudoDataFromSim, "_", " ")
		_, raw, err := l.reader.Dists(ctx, cfg.SystInput, hypoDir(cat, cfg.Dist, cfg.MainHypo), filter)
		if err != nil {
			return nil, err
		}
		names := rootio.SortedNames(raw)
		if len(names) == 0 {
			return nil, fmt.Errorf("no %q sample for %s in %s", filter, cat, cfg.SystInput)
		}
		return map[string]*hist.Hist{"tbart": raw[names[0]]}, nil

	case cfg.PseudoDataFromWgt != "":
		_, sig, err := l.reader.Dists(ctx, cfg.Input, cfg.PseudoDataFromWgt+hypoDir(cat, cfg.Dist, cfg.MainHypo), "t#bar{t}")
		return sig, err

	default:
		_, sig, err := l.reader.Dists(ctx, cfg.Input, hypoDir(cat, cfg.Dist, cfg.PseudoData), "")
		return sig, err
	}
}

// buildPseudoData replaces the observation by the sum of the injected
// signal and every expectation of the main hypothesis, truncated to whole
// events. The injected signal is scaled to the yield of the main hypothesis.
func buildPseudoData(obs *hist.Hist, exp, injected map[string]*hist.Hist, signals signalSet, altHypo float64, withAlt bool, scaler *pseudoScaler, logger *zap.Logger) (*hist.Hist, error) {
	if obs == nil {
		names := rootio.SortedNames(exp)
		if len(names) == 0 {
			return nil, fmt.Errorf("no expectation to build pseudo-data from")
		}
		obs = exp[names[0]].Clone(rootio.ObservedName)
	}
	obs.Reset()

	var accepted []string
	for _, proc := range rootio.SortedNames(injected) {
		if !signals.isRaw(proc) {
			continue
		}
		newProc := signals.mainName(proc)
		target, ok := exp[newProc]
		if !ok {
			return nil, fmt.Errorf("no %s template to normalise the injected %s", newProc, proc)
		}
		accepted = append(accepted, newProc)

		sig := injected[proc]
		hist.NormalizeTo(sig, target.Integral())
		if scaler != nil {
			sig.Scale(scaler.next())
		}
		if err := obs.Add(sig); err != nil {
			return nil, fmt.Errorf("inject %s: %w", proc, err)
		}
		logger.Debug("pseudo-data signal injected", zap.String("process", proc), zap.Float64("yield", sig.Integral()))
	}
	if withAlt {
		accepted = append(accepted, signals.Alt...)
	}

	altTag := fmt.Sprintf("%.0f", altHypo)
	for _, proc := range rootio.SortedNames(exp) {
		if strings.Contains(proc, altTag) || slices.Contains(accepted, proc) {
			continue
		}
		if err := obs.Add(exp[proc]); err != nil {
			return nil, fmt.Errorf("add %s to pseudo-data: %w", proc, err)
		}
	}

	for i := range obs.Content {
		obs.Content[i] = math.Trunc(obs.Content[i])
	}
	return obs, nil
}
