package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/topljets/cardgen/internal/combine"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/plots"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

// ShapesFileName is the shapes file shared by the cards of a hypothesis test.
const ShapesFileName = "shapes.root"

// CardFileName returns the datacard name of a category.
func CardFileName(cat string) string {
	return fmt.Sprintf("datacard_%s.dat", cat)
}

// CardBuilder assembles the datacard of one category and stores its
// templates in the shared shapes file. Steps are chained; after the first
// failure every step is a no-op and Write reports the error.
type CardBuilder struct {
	ctx     context.Context
	cfg     *contract.HypoTestConfig
	loader  *distLoader
	catalog schema.Catalog
	shapes  *rootio.ShapesFile
	scaler  *pseudoScaler
	author  string
	logger  *zap.Logger

	cat     string
	channel string
	dir     string

	obs  *hist.Hist
	exp  map[string]*hist.Hist
	cols []datacard.Column

	buf bytes.Buffer
	dw  *datacard.Writer
	err error
}

// NewCardBuilder is the starting point for building the card of category cat.
func NewCardBuilder(ctx context.Context, gen *hypoTestGenerator, cat string) *CardBuilder {
	b := &CardBuilder{
		ctx:     ctx,
		cfg:     gen.cfg,
		loader:  gen.loader,
		catalog: gen.catalog,
		shapes:  gen.shapes,
		scaler:  gen.scaler,
		author:  gen.author,
		logger:  gen.logger.With(zap.String("category", cat)),
		cat:     cat,
		channel: schema.CategoryChannel(cat),
		dir:     fmt.Sprintf("%s_%s", cat, gen.cfg.Dist),
	}
	b.dw = datacard.NewWriter(&b.buf)
	return b
}

func (b *CardBuilder) fail(err error) *CardBuilder {
	if b.err == nil {
		b.err = fmt.Errorf("category %s: %w", b.cat, err)
	}
	return b
}

// systName substitutes the channel placeholder of a systematic name.
func (b *CardBuilder) systName(name string) string {
	return strings.ReplaceAll(name, schema.ChannelPlaceholder, b.channel)
}

// ReadDists reads the observation and the nominal expectations.
// plotDir receives the DY closure plot when validating.
func (b *CardBuilder) ReadDists(plotDir string) *CardBuilder {
	if b.err != nil {
		return b
	}
	obs, exp, err := b.loader.load(b.ctx, b.cat, variation{}, plotDir)
	if err != nil {
		return b.fail(err)
	}
	b.obs, b.exp = obs, exp
	return b
}

// InjectPseudoData replaces the observation by pseudo-data when requested.
func (b *CardBuilder) InjectPseudoData() *CardBuilder {
	if b.err != nil || !b.cfg.UsesPseudoData() {
		return b
	}
	injected, err := b.loader.pseudoSignal(b.ctx, b.cat)
	if err != nil {
		return b.fail(fmt.Errorf("pseudo-data signal: %w", err))
	}
	var scaler *pseudoScaler
	if b.cfg.RndmPseudoSF {
		scaler = b.scaler
	}
	obs, err := buildPseudoData(b.obs, b.exp, injected, b.loader.signals, b.cfg.AltHypo,
		b.cfg.PseudoDataFromWgt != "", scaler, b.logger)
	if err != nil {
		return b.fail(err)
	}
	b.obs = obs
	return b
}

// WriteProcesses writes the header, observation and process blocks and
// saves the nominal templates.
func (b *CardBuilder) WriteProcesses() *CardBuilder {
	if b.err != nil {
		return b
	}
	if b.obs == nil {
		return b.fail(fmt.Errorf("no observation in %s", b.dir))
	}
	signals := b.loader.signals
	for _, s := range append(append([]string(nil), signals.Main...), signals.Alt...) {
		if _, ok := b.exp[s]; !ok {
			return b.fail(fmt.Errorf("no template for signal %s", s))
		}
	}

	var backgrounds []string
	rates := make(map[string]float64, len(b.exp))
	for _, proc := range rootio.SortedNames(b.exp) {
		rates[proc] = b.exp[proc].Integral()
		if !signals.isHypothesis(proc) {
			backgrounds = append(backgrounds, proc)
		}
	}
	b.cols = datacard.NewColumns(signals.Main, signals.Alt, backgrounds, rates)

	b.dw.Header(fmt.Sprintf("Generated by %s for analysis category %s", b.author, b.cat))
	b.dw.Shapes(ShapesFileName, b.dir)
	b.dw.Observation(b.obs.Integral())
	b.dw.Processes(b.cols)

	nominal := make(map[string]*hist.Hist, len(b.exp)+1)
	for k, h := range b.exp {
		nominal[k] = h
	}
	nominal[rootio.ObservedName] = b.obs
	b.shapes.PutAll(b.dir, nominal, b.cfg.Rebin)
	return b
}

// only returns an entry function marking proc alone with value.
func only(proc, value string) func(string) string {
	return func(p string) string {
		if p == proc {
			return value
		}
		return ""
	}
}

// AddBinByBin adds one shape systematic per bin whose statistical
// uncertainty exceeds the configured threshold.
func (b *CardBuilder) AddBinByBin() *CardBuilder {
	if b.err != nil || b.cfg.AddBinByBin <= 0 {
		return b
	}
	for _, c := range b.cols {
		nom := b.exp[c.Name].Clone(c.Name)
		nom.Rebin(b.cfg.Rebin)
		for _, v := range hist.BinByBin(nom, b.cfg.AddBinByBin) {
			systVar := fmt.Sprintf("%sbin%d%s", c.Name, v.Bin, b.cat)
			v.Up.Name, v.Down.Name = c.Name, c.Name
			b.shapes.Put(fmt.Sprintf("%s_%sUp", b.dir, systVar), v.Up)
			b.shapes.Put(fmt.Sprintf("%s_%sDown", b.dir, systVar), v.Down)
			b.dw.ShapeRow(systVar, datacard.Values(b.cols, only(c.Name, "1")))
		}
	}
	return b
}

// AddRateSysts writes the fixed normalisation uncertainties.
func (b *CardBuilder) AddRateSysts() *CardBuilder {
	if b.err != nil {
		return b
	}
	for _, s := range b.catalog.Rate {
		rule := datacard.Rule{White: s.White, Black: s.Black}
		value := datacard.FormatRateValue(s.Value)
		b.dw.Row(b.systName(s.Name), s.PDF, datacard.Values(b.cols, func(p string) string {
			if rule.Includes(p) {
				return value
			}
			return ""
		}))
	}
	return b
}

// AddWeightSysts writes the shape systematics derived from event weights.
func (b *CardBuilder) AddWeightSysts() *CardBuilder {
	if b.err != nil {
		return b
	}
	for _, s := range b.catalog.Weight {
		name := b.systName(s.Name)
		v, err := b.loader.weightVariation(b.ctx, b.cat, name, s, b.exp)
		if err != nil {
			return b.fail(fmt.Errorf("systematic %s: %w", name, err))
		}
		rule := datacard.Rule{White: s.White, Black: s.Black}
		sigma := fmt.Sprintf("%3.3f", s.NSigma)
		b.addShapeSyst(name, s.Treatment, v, func(p string) string {
			if rule.Includes(p) {
				return sigma
			}
			return ""
		}, rule.IncludesRate)
	}
	return b
}

// AddFileSysts writes the shape systematics taken from dedicated samples.
func (b *CardBuilder) AddFileSysts() *CardBuilder {
	if b.err != nil {
		return b
	}
	for _, s := range b.catalog.File {
		name := b.systName(s.Name)
		v, err := b.loader.fileVariation(b.ctx, b.cat, s, b.exp)
		if err != nil {
			return b.fail(fmt.Errorf("systematic %s: %w", name, err))
		}
		b.addShapeSyst(name, s.Treatment, v, func(p string) string {
			if _, ok := v.up[p]; ok {
				return fmt.Sprintf("%3.3f", s.SigmaFor(p))
			}
			return ""
		}, func(string) bool { return true })
	}
	return b
}

// addShapeSyst post-processes a variation according to its treatment,
// stores its templates and writes its rows.
func (b *CardBuilder) addShapeSyst(name string, treatment schema.ShapeTreatment, v *shapeVariation, entry func(string) string, rateIncluded func(string) bool) {
	var rates map[string]string
	if treatment > schema.ShapeOnly {
		rates = v.normalise(b.exp, b.logger)
	}

	b.shapes.PutAll(fmt.Sprintf("%s_%sUp", b.dir, name), v.up, b.cfg.Rebin)
	b.shapes.PutAll(fmt.Sprintf("%s_%sDown", b.dir, name), v.down, b.cfg.Rebin)
	b.dw.Row(name, "shape", datacard.Values(b.cols, entry))

	if treatment != schema.ShapeAndRate || len(rates) == 0 {
		return
	}
	b.dw.Row(name+combine.RateSuffix, "lnN", b.rateValues(rates, rateIncluded))
}

// rateValues lays out the rate uncertainties of a shape systematic. Unless
// the alternative hypothesis has its own rate uncertainties, its columns
// repeat the values of the main hypothesis.
func (b *CardBuilder) rateValues(rates map[string]string, included func(string) bool) []string {
	nMain, nAlt := len(b.loader.signals.Main), len(b.loader.signals.Alt)
	values := make([]string, len(b.cols))
	for i, c := range b.cols {
		proc := c.Name
		if !b.cfg.UseAltRateUncs && i >= nMain && i < nMain+nAlt {
			proc = b.cols[i-nMain].Name
		}
		v, ok := rates[proc]
		if !ok || !included(proc) {
			v = datacard.Unaffected
		}
		values[i] = v
	}
	return values
}

// Write stores the card in dir and returns its summary.
func (b *CardBuilder) Write(dir string) (schema.CardSummary, error) {
	if b.err != nil {
		return schema.CardSummary{}, b.err
	}
	if err := b.dw.Err(); err != nil {
		return schema.CardSummary{}, fmt.Errorf("category %s: %w", b.cat, err)
	}

	path := filepath.Join(dir, CardFileName(b.cat))
	if err := os.WriteFile(path, b.buf.Bytes(), 0o644); err != nil {
		return schema.CardSummary{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	card, err := datacard.ParseFile(path)
	if err != nil {
		return schema.CardSummary{}, fmt.Errorf("generated card %s does not parse: %w", path, err)
	}
	b.logger.Debug("datacard written", zap.String("path", path),
		zap.Int("processes", len(card.Processes)), zap.Int("systematics", len(card.Systematics)))
	return datacard.Summarise(b.cat, filepath.Base(path), card), nil
}

// PlotShapeUncertainties saves the shape-uncertainty plots of the main
// signal templates. Failures are logged and ignored.
func (b *CardBuilder) PlotShapeUncertainties(outDir string) {
	if b.err != nil {
		return
	}
	var names []string
	for _, s := range b.catalog.Weight {
		names = append(names, b.systName(s.Name))
	}
	for _, s := range b.catalog.File {
		names = append(names, b.systName(s.Name))
	}

	for _, raw := range b.loader.signals.Raw {
		proc := b.loader.signals.mainName(raw)
		nom, ok := b.shapes.Get(b.dir, proc)
		if !ok {
			continue
		}
		for _, syst := range names {
			up, okUp := b.shapes.Get(fmt.Sprintf("%s_%sUp", b.dir, syst), proc)
			down, okDn := b.shapes.Get(fmt.Sprintf("%s_%sDown", b.dir, syst), proc)
			if !okUp || !okDn {
				continue
			}
			plotName := fmt.Sprintf("%s_%s_%s", b.cat, proc, syst)
			if _, err := plots.ShapeUncertainty(nom, up, down, plotName, outDir, plotName); err != nil {
				b.logger.Debug("shape uncertainty plot failed", zap.String("plot", plotName), zap.Error(err))
			}
		}
	}
}
