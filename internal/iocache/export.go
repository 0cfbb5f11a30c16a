package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/parquet"
)

// ExportRuns writes the tracked runs and card yields of store to
// <outputFile>.runs.parquet and <outputFile>.card_yields.parquet.
func ExportRuns(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is disabled")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total yield records: %d\n", status.TableSizes[cardYieldsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	yields, err := store.GetAllCardYields()
	if err != nil {
		return fmt.Errorf("failed to retrieve card yields: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	yieldsFile := outputFile + ".card_yields.parquet"
	if err := parquet.WriteCardYieldsParquet(parquet.ConvertCardYieldRecords(yields), yieldsFile); err != nil {
		return fmt.Errorf("failed to write card yields: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d card yields to: %s\n", len(yields), yieldsFile)
	return nil
}
