package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/plots"
	"github.com/topljets/cardgen/internal/rootio"
	"go.uber.org/zap"
)

// variation selects the weight variation read next to the nominal
// distributions. The zero value is the nominal.
type variation struct {
	Name string
	Gen  bool // stored with the generator-level weights
}

// dir returns the directory holding the variation of the distributions of
// base. Variations are the labelled Y rows of the 2-D histograms stored there.
func (v variation) dir(base string) string {
	switch {
	case v.Name == "":
		return base
	case v.Gen:
		return base + "_gen"
	default:
		return base + "_exp"
	}
}

// distLoader reads the distributions of a category and turns the raw
// signals into their width-hypothesis templates.
type distLoader struct {
	cfg     *contract.HypoTestConfig
	reader  rootio.DistReader
	signals signalSet
	logger  *zap.Logger
}

// read returns the distributions of base in file for variation v.
func (l *distLoader) read(ctx context.Context, file, base string, v variation) (*hist.Hist, map[string]*hist.Hist, error) {
	if v.Name == "" {
		return l.reader.Dists(ctx, file, base, "")
	}
	return l.reader.Rows(ctx, file, v.dir(base), v.Name, "")
}

// load returns the observation and the expectations of cat for variation v.
// Raw signals are replaced by the main and alternative hypothesis templates,
// normalised to the raw signal yield. plotDir enables the DY closure plot.
func (l *distLoader) load(ctx context.Context, cat string, v variation, plotDir string) (*hist.Hist, map[string]*hist.Hist, error) {
	cfg := l.cfg
	obs, exp, err := l.read(ctx, cfg.Input, hypoDir(cat, cfg.Dist, 100), v)
	if err != nil {
		return nil, nil, err
	}

	expMain := exp
	if cfg.MainHypo != 100 {
		if _, expMain, err = l.read(ctx, cfg.Input, hypoDir(cat, cfg.Dist, cfg.MainHypo), v); err != nil {
			return nil, nil, err
		}
	}

	expAlt, err := l.altHypothesis(ctx, cat, v)
	if err != nil {
		return nil, nil, err
	}

	if cfg.ReplaceDYShape {
		if err := l.replaceDY(ctx, cat, exp, plotDir); err != nil {
			l.logger.Debug("DY shape kept", zap.String("category", cat), zap.Error(err))
		}
	}

	for _, proc := range l.signals.Raw {
		if err := l.addHypotheses(proc, exp, expMain, expAlt); err != nil {
			l.logger.Debug("signal hypothesis skipped",
				zap.String("category", cat), zap.String("process", proc), zap.Error(err))
		}
	}
	for _, proc := range l.signals.Raw {
		delete(exp, proc)
	}
	return obs, exp, nil
}

// altHypothesis reads the alternative hypothesis templates, from the
// reweighted input or from a dedicated sample of the systematics input.
// The dedicated sample templates are the processes whose name carries the
// AltHypoFromSim tag, stored under the name without it.
func (l *distLoader) altHypothesis(ctx context.Context, cat string, v variation) (map[string]*hist.Hist, error) {
	cfg := l.cfg
	base := hypoDir(cat, cfg.Dist, cfg.AltHypo)
	if cfg.AltHypoFromSim == "" {
		_, exp, err := l.read(ctx, cfg.Input, base, v)
		return exp, err
	}

	_, raw, err := l.read(ctx, cfg.SystInput, base, v)
	if err != nil {
		return nil, err
	}
	exp := make(map[string]*hist.Hist, len(raw))
	for name, h := range raw {
		if !strings.Contains(name, cfg.AltHypoFromSim) {
			continue
		}
		proc := strings.ReplaceAll(name, cfg.AltHypoFromSim, "")
		h.Name = proc
		exp[proc] = h
	}
	return exp, nil
}

// replaceDY swaps the DY template for the alternative sample of the
// systematics input, keeping the nominal yield.
func (l *distLoader) replaceDY(ctx context.Context, cat string, exp map[string]*hist.Hist, plotDir string) error {
	cfg := l.cfg
	nom, ok := exp["DY"]
	if !ok {
		return fmt.Errorf("no DY template in %s", cat)
	}
	_, alt, err := l.reader.Dists(ctx, cfg.SystInput, hypoDir(cat, cfg.Dist, cfg.MainHypo), "DY")
	if err != nil {
		return err
	}
	altDY, ok := alt["DY"]
	if !ok {
		return fmt.Errorf("no DY template in the systematics input for %s", cat)
	}
	if !hist.NormalizeAllTo(altDY, nom.IntegralAll()) {
		return fmt.Errorf("alternative DY template of %s is empty", cat)
	}

	if plotDir != "" && cfg.DoValidation {
		name := fmt.Sprintf("DY_%s_%s", cat, cfg.Dist)
		if _, err := plots.Closure(nom, altDY, name, plotDir, name); err != nil {
			l.logger.Debug("DY closure plot failed", zap.String("category", cat), zap.Error(err))
		}
	}
	altDY.Name = "DY"
	exp["DY"] = altDY
	return nil
}

// addHypotheses adds the main and alternative templates of raw signal proc,
// both normalised to the yield of proc including the flow bins.
func (l *distLoader) addHypotheses(proc string, exp, expMain, expAlt map[string]*hist.Hist) error {
	raw, ok := exp[proc]
	if !ok {
		return fmt.Errorf("no %s template", proc)
	}
	n := raw.IntegralAll()

	main, ok := expMain[proc]
	if !ok {
		return fmt.Errorf("no %s template for the main hypothesis", proc)
	}
	mainName := l.signals.mainName(proc)
	exp[mainName] = main.Clone(mainName)
	if !hist.NormalizeAllTo(exp[mainName], n) {
		return fmt.Errorf("empty %s template", mainName)
	}

	alt, ok := expAlt[proc]
	if !ok {
		return fmt.Errorf("no %s template for the alternative hypothesis", proc)
	}
	altName := l.signals.altName(proc)
	exp[altName] = alt.Clone(altName)
	if !hist.NormalizeAllTo(exp[altName], n) {
		return fmt.Errorf("empty %s template", altName)
	}
	return nil
}
