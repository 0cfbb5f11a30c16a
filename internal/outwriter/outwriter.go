// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteYields prints the per-card yields of a generator run using the configured output format.
func (ow *OutWriter) WriteYields(summary schema.GenerationSummary, cfg *contract.CommonConfig, duration time.Duration) error {
	return WriteYieldResults(summary, cfg, duration)
}

// WriteCard prints a parsed datacard using the configured output format.
func (ow *OutWriter) WriteCard(card schema.Datacard, cfg *contract.CommonConfig) error {
	return WriteCardResults(card, cfg)
}

// WriteSystematics prints a systematics catalog using the configured output format.
func (ow *OutWriter) WriteSystematics(catalog schema.Catalog, cfg *contract.CommonConfig) error {
	return WriteSystematicsResults(catalog, cfg)
}
