package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

// topPtSyst is normalised across the lowpt/highpt categories.
const topPtSyst = "tttoppt"

// shapeVariation holds the up and down templates of one shape systematic.
// The complementary-category templates are set for systematics whose yield
// is preserved across the lowpt/highpt split.
type shapeVariation struct {
	up, down map[string]*hist.Hist

	complNom, complUp, complDown map[string]*hist.Hist
}

// normalise scales the templates to the nominal yields and returns the
// rate uncertainty of every process whose yield moved by more than 0.1%.
func (v *shapeVariation) normalise(exp map[string]*hist.Hist, logger *zap.Logger) map[string]string {
	rates := make(map[string]string)
	for _, proc := range rootio.SortedNames(v.up) {
		nom, ok := exp[proc]
		if !ok {
			logger.Debug("variation without nominal template", zap.String("process", proc))
			continue
		}
		up := v.up[proc]
		down, ok := v.down[proc]
		if !ok {
			logger.Debug("variation without down template", zap.String("process", proc))
			continue
		}

		n, nUp, nDn := nom.IntegralAll(), up.IntegralAll(), down.IntegralAll()
		upSF, dnSF := v.complementaryScales(proc, n, nUp, nDn)
		if nUp > 0 {
			up.Scale(upSF * n / nUp)
		}
		if nDn > 0 {
			down.Scale(dnSF * n / nDn)
		}

		lo, hi, ok := hist.ScaledRatio(n, nUp, nDn)
		if !ok {
			continue
		}
		if unc, ok := datacard.RateUncertainty(lo, hi); ok {
			rates[proc] = unc
		}
	}
	return rates
}

// complementaryScales returns the factors keeping the summed yield of both
// categories at its nominal value. Without complementary templates they are 1.
func (v *shapeVariation) complementaryScales(proc string, n, nUp, nDn float64) (float64, float64) {
	if v.complNom == nil || v.complUp == nil || v.complDown == nil {
		return 1, 1
	}
	cNom, ok1 := v.complNom[proc]
	cUp, ok2 := v.complUp[proc]
	cDn, ok3 := v.complDown[proc]
	if !ok1 || !ok2 || !ok3 {
		return 1, 1
	}
	total := n + cNom.IntegralAll()
	totalUp := nUp + cUp.IntegralAll()
	totalDn := nDn + cDn.IntegralAll()
	upSF, dnSF := 1.0, 1.0
	if totalUp > 0 {
		upSF = total / totalUp
	}
	if totalDn > 0 {
		dnSF = total / totalDn
	}
	return upSF, dnSF
}

// cloneAll returns a deep copy of a template map.
func cloneAll(hs map[string]*hist.Hist) map[string]*hist.Hist {
	out := make(map[string]*hist.Hist, len(hs))
	for k, h := range hs {
		out[k] = h.Clone("")
	}
	return out
}

// weightVariation builds the templates of a systematic derived from event
// weights: a single up/down pair, or the envelope (mean±RMS for PDF
// replicas) of a list of weights.
func (l *distLoader) weightVariation(ctx context.Context, cat, name string, s schema.WeightSyst, exp map[string]*hist.Hist) (*shapeVariation, error) {
	gen := s.IsGen()
	load := func(c, w string) (map[string]*hist.Hist, error) {
		_, e, err := l.load(ctx, c, variation{Name: w, Gen: gen}, "")
		return e, err
	}

	if len(s.Weights) > 1 {
		return l.replicaVariation(ctx, cat, name, s.Weights, gen)
	}

	w := s.Weights[0]
	upName, dnName := w+"up", w+"dn"
	if strings.Contains(w, "jes") {
		num := strings.ReplaceAll(w, "jes", "")
		upName, dnName = "jesup_"+num, "jesdn_"+num
	}
	up, err := load(cat, upName)
	if err != nil {
		return nil, err
	}

	if name == topPtSyst {
		compl := complementaryCategory(cat)
		_, complNom, err := l.load(ctx, compl, variation{}, "")
		if err != nil {
			return nil, err
		}
		complUp, err := load(compl, upName)
		if err != nil {
			return nil, err
		}
		// the down variation is the nominal
		return &shapeVariation{
			up: up, down: cloneAll(exp),
			complNom: complNom, complUp: complUp, complDown: complNom,
		}, nil
	}

	down, err := load(cat, dnName)
	if err != nil {
		return nil, err
	}
	return &shapeVariation{up: up, down: down}, nil
}

// replicaVariation combines the templates of every weight replica.
func (l *distLoader) replicaVariation(ctx context.Context, cat, name string, weights []string, gen bool) (*shapeVariation, error) {
	replicas := make([]map[string]*hist.Hist, 0, len(weights))
	procs := make(map[string]*hist.Hist)
	for _, w := range weights {
		_, kexp, err := l.load(ctx, cat, variation{Name: w, Gen: gen}, "")
		if err != nil {
			return nil, err
		}
		replicas = append(replicas, kexp)
		for p, h := range kexp {
			if _, ok := procs[p]; !ok {
				procs[p] = h
			}
		}
	}

	v := &shapeVariation{up: make(map[string]*hist.Hist), down: make(map[string]*hist.Hist)}
	for _, proc := range rootio.SortedNames(procs) {
		hs := make([]*hist.Hist, len(replicas))
		for i, r := range replicas {
			h, ok := r[proc]
			if !ok {
				// a replica without the process contributes an empty template
				h = procs[proc].Clone("")
				h.Reset()
			}
			hs[i] = h
		}

		var up, down *hist.Hist
		var err error
		if strings.Contains(name, "PDF") {
			up, down, err = hist.MeanRMS(hs)
		} else {
			up, down, err = hist.Envelope(hs)
		}
		if err != nil {
			return nil, fmt.Errorf("%s of %s: %w", name, proc, err)
		}
		up.Name, down.Name = proc, proc
		v.up[proc], v.down[proc] = up, down
	}
	return v, nil
}

// fileVariation builds the templates of a systematic taken from dedicated
// samples of the systematics input. Signals get one template per
// hypothesis; a missing down sample is mirrored from the up one.
func (l *distLoader) fileVariation(ctx context.Context, cat string, s schema.FileSyst, exp map[string]*hist.Hist) (*shapeVariation, error) {
	cfg := l.cfg
	v := &shapeVariation{up: make(map[string]*hist.Hist), down: make(map[string]*hist.Hist)}

	for _, proc := range s.Processes() {
		samples := s.Samples[proc]

		type target struct {
			hypo float64
			name string
		}
		targets := []target{{hypo: 100, name: proc}}
		if l.signals.isRaw(proc) {
			targets = []target{
				{hypo: cfg.MainHypo, name: l.signals.mainName(proc)},
				{hypo: cfg.AltHypo, name: l.signals.altName(proc)},
			}
		}

		for _, t := range targets {
			dir := hypoDir(cat, cfg.Dist, t.hypo)
			upSample := samples[len(samples)-1]
			up, err := l.firstMatch(ctx, dir, upSample)
			if err != nil {
				return nil, err
			}
			up.Name = t.name
			v.up[t.name] = up

			var down *hist.Hist
			if len(samples) == 2 {
				if down, err = l.firstMatch(ctx, dir, samples[0]); err != nil {
					l.logger.Debug("down sample missing, mirroring", zap.String("systematic", s.Name),
						zap.String("process", t.name), zap.Error(err))
				}
			}
			if down == nil {
				nom, ok := exp[t.name]
				if !ok {
					return nil, fmt.Errorf("%s: no nominal %s template to mirror", s.Name, t.name)
				}
				if down, err = mirror(cfg.Mirror, nom, up); err != nil {
					return nil, fmt.Errorf("%s: %w", s.Name, err)
				}
			}
			down.Name = t.name
			v.down[t.name] = down
		}
	}
	return v, nil
}

// firstMatch returns the first template of the systematics input whose name contains sample.
func (l *distLoader) firstMatch(ctx context.Context, dir, sample string) (*hist.Hist, error) {
	_, hs, err := l.reader.Dists(ctx, l.cfg.SystInput, dir, sample)
	if err != nil {
		return nil, err
	}
	names := rootio.SortedNames(hs)
	if len(names) == 0 {
		return nil, fmt.Errorf("no %q sample in %s:%s", sample, l.cfg.SystInput, dir)
	}
	return hs[names[0]], nil
}

// mirror rebuilds a down variation from the up one.
func mirror(mode schema.MirrorMode, nom, up *hist.Hist) (*hist.Hist, error) {
	if mode == schema.MirrorSymmetric {
		return hist.MirrorSymmetric(nom, up)
	}
	return hist.CopyNominal(nom, up)
}
