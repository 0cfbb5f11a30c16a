// Package core has the datacard generators: the top-width hypothesis test
// and the PPS binned workspace.
package core

import (
	"context"
	"time"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/outwriter"
	"github.com/topljets/cardgen/internal/rootio"
	"go.uber.org/zap"
)

// Deps holds the collaborators of a generator run.
// Stores may be nil, in which case nothing is cached or tracked.
type Deps struct {
	Reader rootio.DistReader
	Git    contract.GitClient
	Shell  contract.ShellRunner
	Stores contract.StoreManager
	Logger *zap.Logger
}

// ExecutorFunc defines the function signature for executing the generators.
type ExecutorFunc[C any] func(ctx context.Context, cfg C, mgr contract.StoreManager, logger *zap.Logger) error

// ExecuteHypoTest generates the hypothesis-test datacards and prints the card yields.
// It serves as the main entry point for the 'hypotest' command.
func ExecuteHypoTest(ctx context.Context, cfg *contract.HypoTestConfig, mgr contract.StoreManager, logger *zap.Logger) error {
	start := time.Now()
	logger = contract.LoggerOrNop(logger)

	reader := rootio.NewFileReader(logger)
	defer func() {
		if err := reader.Close(); err != nil {
			contract.LogWarn("Failed to close input files", err)
		}
	}()
	source := rootio.NewCachedSource(reader, histStoreOf(mgr), logger)

	summary, err := RunHypoTest(ctx, cfg, Deps{
		Reader: source,
		Git:    contract.NewLocalGitClient(),
		Shell:  contract.NewLocalShellRunner(),
		Stores: mgr,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	hits, misses := source.Stats()
	logger.Debug("distribution cache", zap.Int("hits", hits), zap.Int("misses", misses))

	return outwriter.NewOutWriter().WriteYields(summary, &cfg.CommonConfig, time.Since(start))
}

// ExecuteWorkspace generates the PPS binned workspace and prints the card yields.
// It serves as the main entry point for the 'workspace' command.
func ExecuteWorkspace(ctx context.Context, cfg *contract.WorkspaceConfig, mgr contract.StoreManager, logger *zap.Logger) error {
	start := time.Now()
	summary, err := RunWorkspace(ctx, cfg, Deps{Stores: mgr, Logger: logger})
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteYields(summary, &cfg.CommonConfig, time.Since(start))
}
