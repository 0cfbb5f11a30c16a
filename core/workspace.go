package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/datacard"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkspaceCommand is the command name recorded for workspace runs.
const WorkspaceCommand = "workspace"

// workspaceTask is one channel at one crossing angle. It owns its shapes file and cards.
type workspaceTask struct {
	channel ppsChannel
	angle   int
	cfg     *contract.WorkspaceConfig
	logger  *zap.Logger
}

// workspaceTasks returns every channel and crossing-angle combination, each
// with its own copy of the configuration.
func workspaceTasks(cfg *contract.WorkspaceConfig, logger *zap.Logger) []workspaceTask {
	var tasks []workspaceTask
	for _, ch := range ppsChannels {
		for _, angle := range ppsCrossingAngles {
			tasks = append(tasks, workspaceTask{
				channel: ch,
				angle:   angle,
				cfg:     cfg.Clone(),
				logger:  logger.With(zap.String("channel", ch.Tag), zap.Int("xangle", angle)),
			})
		}
	}
	return tasks
}

// RunWorkspace writes the binned templates and parametric cards of every
// channel and crossing angle, running the tasks on a fixed-size pool.
func RunWorkspace(ctx context.Context, cfg *contract.WorkspaceConfig, deps Deps) (schema.GenerationSummary, error) {
	logger := contract.LoggerOrNop(deps.Logger)
	return runWorkspaceTasks(ctx, cfg, workspaceTasks(cfg, logger), deps.Stores, logger)
}

func runWorkspaceTasks(ctx context.Context, cfg *contract.WorkspaceConfig, tasks []workspaceTask, mgr contract.StoreManager, logger *zap.Logger) (schema.GenerationSummary, error) {
	summary := schema.GenerationSummary{
		RunUUID:   uuid.NewString(),
		Command:   WorkspaceCommand,
		OutputDir: cfg.OutputDir,
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	logger.Info("generating binned workspace",
		zap.Strings("masses", cfg.Masses), zap.Int("bins", cfg.NBins),
		zap.Float64("m_min", cfg.MMin), zap.Float64("m_max", cfg.MMax), zap.Bool("unblind", cfg.Unblind))

	store := runStoreOf(mgr)
	ctx = beginRun(ctx, store, summary.RunUUID, WorkspaceCommand, cfg.OutputDir, map[string]any{
		"input":      cfg.Input,
		"masses":     cfg.Masses,
		"categories": cfg.Categories,
		"lumi":       cfg.Lumi,
		"workers":    cfg.Workers,
		"unblind":    cfg.Unblind,
	})

	results := make([][]schema.CardSummary, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, task := range tasks {
		g.Go(func() error {
			cards, err := task.run(gctx)
			if err != nil {
				return fmt.Errorf("%s at %d urad: %w", task.channel.Tag, task.angle, err)
			}
			results[i] = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, cards := range results {
		for _, card := range cards {
			recordCard(ctx, store, card)
			summary.Cards = append(summary.Cards, card)
		}
	}
	endRun(ctx, store, len(summary.Cards))
	return summary, nil
}

// tag returns the channel tag of the task, e.g. zmm_a120.
func (t workspaceTask) tag() string {
	return fmt.Sprintf("%s_a%d", t.channel.Tag, t.angle)
}

// presel returns the preselection of the task.
func (t workspaceTask) presel() string {
	cut := t.cfg.PreselZ
	if t.channel.Boson == "gamma" {
		cut = t.cfg.PreselGamma
	}
	return fmt.Sprintf("cat==%s && xangle==%d && %s", t.channel.Code, t.angle, cut)
}

// categoryName returns the name of sub-category icat.
func (t workspaceTask) categoryName(icat int) string {
	return fmt.Sprintf("%s_%d", t.tag(), icat)
}

// shapesFileName returns the shapes file of the task.
func (t workspaceTask) shapesFileName() string {
	return fmt.Sprintf("shapes_%s_a%d.root", t.channel.Code, t.angle)
}

// run fills the templates, writes the shapes file and one card per sub-category.
func (t workspaceTask) run(ctx context.Context) ([]schema.CardSummary, error) {
	shapes := rootio.NewShapesFile()

	t.logger.Debug("filling background templates and observed data")
	bkg, obs, err := t.fillBackground(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range bkg {
		shapes.Put("", h)
	}

	t.logger.Debug("filling signal templates")
	for _, mass := range t.cfg.Masses {
		sig, nominal, err := t.fillSignal(ctx, mass)
		if err != nil {
			return nil, fmt.Errorf("mass %s: %w", mass, err)
		}
		for _, h := range sig {
			shapes.Put("", h)
		}
		if t.cfg.Unblind || t.cfg.InjectMass != mass {
			continue
		}
		for _, region := range nominal {
			for icat, h := range region {
				if err := obs[icat].Add(h); err != nil {
					return nil, fmt.Errorf("inject mass %s: %w", mass, err)
				}
			}
		}
	}
	for _, h := range obs {
		shapes.Put("", h)
	}

	shapesPath := filepath.Join(t.cfg.OutputDir, t.shapesFileName())
	if err := shapes.Write(shapesPath); err != nil {
		return nil, err
	}
	return t.writeCards(filepath.Base(shapesPath))
}

// dataFiles lists the data ntuples of the task's final state.
func (t workspaceTask) dataFiles() ([]string, error) {
	entries, err := os.ReadDir(t.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory %s: %w", t.cfg.Input, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.Contains(name, "Data13TeV") || strings.Contains(name, "MuonEG") {
			continue
		}
		switch t.channel.Tag {
		case "zmm":
			if strings.Contains(name, "Photon") || strings.Contains(name, "DoubleEG") {
				continue
			}
		case "zee":
			if strings.Contains(name, "Muon") || strings.Contains(name, "Photon") {
				continue
			}
		case "g":
			if !strings.Contains(name, "Photon") {
				continue
			}
		}
		files = append(files, filepath.Join(t.cfg.Input, name))
	}
	sort.Strings(files)
	return files, nil
}

// prefixed applies a variable prefix to the proton kinematics of a cut.
func prefixed(cut, pfix string) string {
	cut = strings.ReplaceAll(cut, "csi1", pfix+"csi1")
	return strings.ReplaceAll(cut, "csi2", pfix+"csi2")
}

// templateDef describes one template of a process.
type templateDef struct {
	suffix  string
	mixType int
	pfix    string
	weight  string
}

var bkgTemplateDefs = []templateDef{
	{suffix: "", mixType: 1},
	{suffix: "_bkgShape", mixType: 1, pfix: "syst"},
	{suffix: "_bkgShapeSingleDiff", mixType: 2},
}

var sigTemplateDefs = []templateDef{
	{suffix: "", mixType: 1},
	{suffix: "_sigShape", mixType: 1, pfix: "syst"},
	{suffix: "_sigShapeSingleDiff", mixType: 2},
	{suffix: "_sigCalib", mixType: 1},
	{suffix: "_sigPzModel", mixType: 1, weight: "gen_pzwgtUp"},
}

func (t workspaceTask) spec(name, variable, selection, weight string) rootio.HistSpec {
	return rootio.HistSpec{
		Name: name, Var: variable, Selection: selection, Weight: weight,
		NBins: t.cfg.NBins, Min: t.cfg.MMin, Max: t.cfg.MMax,
	}
}

// fillBackground returns the background templates and the observation of every sub-category.
// The background is estimated from event mixing and normalised to the unmixed yield.
func (t workspaceTask) fillBackground(ctx context.Context) ([]*hist.Hist, []*hist.Hist, error) {
	files, err := t.dataFiles()
	if err != nil {
		return nil, nil, err
	}

	var specs []rootio.HistSpec
	for icat, categ := range t.cfg.Categories {
		cut := t.presel()
		if categ != "" {
			cut = categ + " && " + cut
		}
		catName := t.categoryName(icat)
		specs = append(specs, t.spec("total_"+catName, "mmiss", cut+" && mmiss>0 && mixType==0", ""))
		for _, d := range bkgTemplateDefs {
			specs = append(specs, t.spec("bkg_"+catName+d.suffix, d.pfix+"mmiss",
				fmt.Sprintf("%s && %smmiss>0 && mixType==%d", prefixed(cut, d.pfix), d.pfix, d.mixType), "wgt"))
		}
	}
	filled, err := rootio.NewNtuple(files, t.logger).FillAll(ctx, specs)
	if err != nil {
		return nil, nil, err
	}

	per := 1 + len(bkgTemplateDefs)
	var templates []*hist.Hist
	obs := make([]*hist.Hist, len(t.cfg.Categories))
	for icat := range t.cfg.Categories {
		catName := t.categoryName(icat)
		total := filled[icat*per]
		histos := filled[icat*per+1 : (icat+1)*per]
		for _, h := range histos {
			hist.NormalizeTo(h, total.Integral())
		}
		if t.cfg.Unblind {
			obs[icat] = total.Clone(rootio.ObservedName + "_" + catName)
		} else {
			obs[icat] = histos[0].Clone(rootio.ObservedName + "_" + catName)
		}

		defined, err := defineProcessTemplates(histos)
		if err != nil {
			return nil, nil, fmt.Errorf("background of %s: %w", catName, err)
		}
		templates = append(templates, defined...)
		t.logger.Debug("background templates filled", zap.String("category", catName), zap.Float64("total", total.Integral()))
	}
	return templates, obs, nil
}

// signal regions, in fill order
var signalRegions = []string{"fid", "outfid"}

// fillSignal returns the signal templates of a mass point and, per region,
// the nominal templates used to inject the signal into pseudo-data.
func (t workspaceTask) fillSignal(ctx context.Context, mass string) ([]*hist.Hist, map[string][]*hist.Hist, error) {
	file := strings.NewReplacer(
		"{boson}", t.channel.Boson,
		"{xangle}", fmt.Sprint(t.angle),
		"{mass}", mass,
	).Replace(t.cfg.SigPattern)
	nominalFile := filepath.Join(t.cfg.Input, file)
	calibFile := strings.ReplaceAll(nominalFile, "preTS2", "postTS2")
	wgtExpr := fmt.Sprintf("wgt*%g*%g", signalXSec(t.channel, t.angle), t.cfg.Lumi)

	// sigCalib comes from the post-TS2 sample, everything else from the nominal one
	var specs, calibSpecs []rootio.HistSpec
	for icat, categ := range t.cfg.Categories {
		cut := t.presel()
		if categ != "" {
			cut += " && " + categ
		}
		for _, region := range signalRegions {
			for _, d := range sigTemplateDefs {
				name := fmt.Sprintf("%ssig_%s_m%s%s", region, t.categoryName(icat), mass, d.suffix)
				sel := prefixed(cut, d.pfix)
				if region == "outfid" {
					sel += " && !(" + fiducialCut + ")"
				} else {
					sel += " && " + fiducialCut
				}
				sel += fmt.Sprintf(" && mixType==%d && %smmiss>0", d.mixType, d.pfix)
				weight := wgtExpr
				if d.weight != "" {
					weight += "*" + d.weight
				}
				spec := t.spec(name, d.pfix+"mmiss", sel, weight)
				if d.suffix == "_sigCalib" {
					calibSpecs = append(calibSpecs, spec)
				} else {
					specs = append(specs, spec)
				}
			}
		}
	}

	filled, err := rootio.NewNtuple([]string{nominalFile}, t.logger).FillAll(ctx, specs)
	if err != nil {
		return nil, nil, err
	}
	calib, err := rootio.NewNtuple([]string{calibFile}, t.logger).FillAll(ctx, calibSpecs)
	if err != nil {
		return nil, nil, err
	}

	var templates []*hist.Hist
	nominal := make(map[string][]*hist.Hist, len(signalRegions))
	per := len(sigTemplateDefs) - 1
	for i := range calib {
		histos := make([]*hist.Hist, 0, len(sigTemplateDefs))
		histos = append(histos, filled[i*per:i*per+3]...)
		histos = append(histos, calib[i])
		histos = append(histos, filled[i*per+3:(i+1)*per]...)

		region := signalRegions[i%len(signalRegions)]
		nominal[region] = append(nominal[region], histos[0].Clone(histos[0].Name+"_sigforpseudodata"))

		defined, err := defineProcessTemplates(histos)
		if err != nil {
			return nil, nil, fmt.Errorf("signal %s: %w", histos[0].Name, err)
		}
		templates = append(templates, defined...)
	}
	return templates, nominal, nil
}

// writeCards writes one parametric card per sub-category and returns their summaries.
func (t workspaceTask) writeCards(shapesURL string) ([]schema.CardSummary, error) {
	w := datacard.ParametricWriter{
		ShapesURL:  shapesURL,
		FinalState: t.channel.FinalState,
		Options: fmt.Sprintf("channel=%s xangle=%d presel=%q masses=%s lumi=%g mbin=%g mmin=%g mmax=%g unblind=%t inject=%s",
			t.channel.Tag, t.angle, t.presel(), strings.Join(t.cfg.Masses, ","), t.cfg.Lumi,
			t.cfg.MBin, t.cfg.MMin, t.cfg.MMax, t.cfg.Unblind, t.cfg.InjectMass),
	}

	var cards []schema.CardSummary
	for icat := range t.cfg.Categories {
		cat := t.categoryName(icat)
		path := filepath.Join(t.cfg.OutputDir, w.FileName(cat))
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := w.Write(f, cat); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s: %w", path, err)
		}

		card, err := datacard.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("generated card %s does not parse: %w", path, err)
		}
		cards = append(cards, datacard.Summarise(cat, filepath.Base(path), card))
	}
	t.logger.Debug("cards written", zap.Int("cards", len(cards)), zap.String("shapes", shapesURL))
	return cards, nil
}
