package core

import (
	"context"
	"fmt"
	"time"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// runStoreOf returns the run store of mgr, or nil when tracking is disabled.
func runStoreOf(mgr contract.StoreManager) contract.RunStore {
	if mgr == nil {
		return nil
	}
	return mgr.GetRunStore()
}

// histStoreOf returns the histogram cache of mgr, or nil when caching is disabled.
func histStoreOf(mgr contract.StoreManager) contract.CacheStore {
	if mgr == nil {
		return nil
	}
	return mgr.GetHistStore()
}

// beginRun records the start of a generation run and returns a context
// carrying its ID. Tracking failures are reported and otherwise ignored.
func beginRun(ctx context.Context, store contract.RunStore, runUUID, command, outputDir string, params map[string]any) context.Context {
	if store == nil {
		return ctx
	}
	runID, err := store.BeginRun(runUUID, command, outputDir, time.Now(), params)
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		return ctx
	}
	return withRunID(ctx, runID)
}

// recordCard stores the yields of a generated card under the current run.
func recordCard(ctx context.Context, store contract.RunStore, card schema.CardSummary) {
	runID := runIDFromContext(ctx)
	if store == nil || runID == 0 {
		return
	}
	if err := store.RecordCardYields(runID, card); err != nil {
		contract.LogWarn(fmt.Sprintf("Failed to record yields of %s", card.Card), err)
	}
}

// endRun finalises the tracked run.
func endRun(ctx context.Context, store contract.RunStore, totalCards int) {
	runID := runIDFromContext(ctx)
	if store == nil || runID == 0 {
		return
	}
	if err := store.EndRun(runID, time.Now(), totalCards); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}
