package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/topljets/cardgen/internal/combine"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

// HypoTestCommand is the command name recorded for hypothesis-test runs.
const HypoTestCommand = "hypotest"

// hypoTestGenerator holds the state shared by the cards of one hypothesis test.
type hypoTestGenerator struct {
	cfg     *contract.HypoTestConfig
	loader  *distLoader
	catalog schema.Catalog
	shapes  *rootio.ShapesFile
	scaler  *pseudoScaler
	author  string
	logger  *zap.Logger
}

// RunHypoTest writes one datacard per category, the shared shapes file and
// the Combine steering script, and runs the script when requested.
func RunHypoTest(ctx context.Context, cfg *contract.HypoTestConfig, deps Deps) (schema.GenerationSummary, error) {
	logger := contract.LoggerOrNop(deps.Logger)
	signals := newSignalSet(cfg.Signals, cfg.MainHypo, cfg.AltHypo)
	catalog := combine.RemoveNuisances(cfg.Catalog, cfg.RemoveNuisances).ExpandScenarios(signals.scenarios())
	freeze := combine.FreezeList(catalog, cfg.FreezeNuisances, cfg.Categories)
	if freeze != "" {
		logger.Info("nuisances frozen in the fits", zap.String("freeze", freeze))
	}

	outDir := filepath.Join(cfg.OutputDir, outputDirName(cfg.MainHypo, cfg.AltHypo, cfg.AltHypoFromSim,
		cfg.PseudoData, cfg.PseudoDataFromSim, cfg.PseudoDataFromWgt))
	if err := prepareOutputDir(outDir); err != nil {
		return schema.GenerationSummary{}, err
	}

	user := contract.CurrentUser()
	hash := contract.ShortHashOrUnknown(ctx, deps.Git, ".")
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := &hypoTestGenerator{
		cfg:     cfg,
		loader:  &distLoader{cfg: cfg, reader: deps.Reader, signals: signals, logger: logger},
		catalog: catalog,
		shapes:  rootio.NewShapesFile(),
		scaler:  newPseudoScaler(seed),
		author:  fmt.Sprintf("%s with git hash %s", user, hash),
		logger:  logger,
	}

	summary := schema.GenerationSummary{
		RunUUID:   uuid.NewString(),
		Command:   HypoTestCommand,
		OutputDir: outDir,
	}
	store := runStoreOf(deps.Stores)
	ctx = beginRun(ctx, store, summary.RunUUID, HypoTestCommand, outDir, map[string]any{
		"input":      cfg.Input,
		"dist":       cfg.Dist,
		"main_hypo":  cfg.MainHypo,
		"alt_hypo":   cfg.AltHypo,
		"categories": cfg.Categories,
		"pseudodata": cfg.PseudoData,
		"rebin":      cfg.Rebin,
	})

	var cards []combine.Card
	for _, cat := range cfg.Categories {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		logger.Info("starting datacard", zap.String("category", cat))

		b := NewCardBuilder(ctx, gen, cat).
			ReadDists(outDir).
			InjectPseudoData().
			WriteProcesses().
			AddBinByBin().
			AddRateSysts().
			AddWeightSysts().
			AddFileSysts()
		card, err := b.Write(outDir)
		if err != nil {
			return summary, err
		}
		recordCard(ctx, store, card)
		summary.Cards = append(summary.Cards, card)
		cards = append(cards, combine.Card{Category: cat, File: card.Card})

		if cfg.DoValidation {
			b.PlotShapeUncertainties(outDir)
		}
	}

	shapesPath := filepath.Join(outDir, ShapesFileName)
	if err := gen.shapes.Write(shapesPath); err != nil {
		return summary, err
	}
	logger.Debug("shapes file written", zap.String("path", shapesPath), zap.Int("histograms", gen.shapes.Len()))

	script, err := combine.WriteSteeringScript(outDir, combine.ScriptOptions{
		User:         user,
		GitHash:      hash,
		MainHypo:     cfg.MainHypo,
		AltHypo:      cfg.AltHypo,
		CombineDir:   cfg.Combine,
		Cards:        cards,
		DoValidation: cfg.DoValidation,
		Freeze:       freeze,
	})
	if err != nil {
		return summary, err
	}
	summary.Script = script
	endRun(ctx, store, len(summary.Cards))

	if cfg.Run {
		if deps.Shell == nil {
			return summary, fmt.Errorf("cannot run %s: no shell available", script)
		}
		out, err := deps.Shell.RunScript(ctx, script, outDir)
		logger.Debug("steering script finished", zap.String("script", script), zap.ByteString("output", out))
		if err != nil {
			return summary, fmt.Errorf("steering script %s failed: %w", script, err)
		}
	}
	return summary, nil
}

// prepareOutputDir creates dir and removes everything it contains.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list output directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clean output directory %s: %w", dir, err)
		}
	}
	return nil
}
