// Package parquet provides data structures and functions for exporting tracked
// cardgen runs to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/topljets/cardgen/schema"
)

// Run represents a single generator run.
// This struct maps to the cardgen_runs database table.
type Run struct {
	// RunID is the store-assigned identifier
	RunID int64 `parquet:"run_id,snappy"`

	// RunUUID is the identifier stamped into the run's outputs
	RunUUID string `parquet:"run_uuid,snappy"`

	// Command is the generator that ran (hypotest or workspace)
	Command string `parquet:"command,snappy"`

	// OutputDir is where the cards were written
	OutputDir string `parquet:"output_dir,snappy"`

	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`

	// TotalCards is the number of datacards written by the run
	TotalCards int32 `parquet:"total_cards,snappy"`

	// ConfigParams contains the JSON-encoded configuration (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// CardYield is the expected yield of one process in one generated card.
// This struct maps to the cardgen_card_yields database table.
type CardYield struct {
	RunID      int64     `parquet:"run_id,snappy"`
	Card       string    `parquet:"card,snappy"`
	Category   string    `parquet:"category,snappy"`
	Process    string    `parquet:"process,snappy"`
	ProcIndex  int32     `parquet:"proc_index,snappy"`
	Yield      float64   `parquet:"yield,snappy"`
	RecordedAt time.Time `parquet:"recorded_at,snappy"`
}

func writeRows[T any](data []T, outputPath string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteRunsParquet writes runs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteCardYieldsParquet writes card yields to a Parquet file.
func WriteCardYieldsParquet(data []CardYield, outputPath string) error {
	return writeRows(data, outputPath)
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			RunUUID:       record.RunUUID,
			Command:       record.Command,
			OutputDir:     record.OutputDir,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalCards:    record.TotalCards,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertCardYieldRecords converts schema.CardYieldRecord to CardYield for Parquet export.
func ConvertCardYieldRecords(records []schema.CardYieldRecord) []CardYield {
	result := make([]CardYield, len(records))
	for i, record := range records {
		result[i] = CardYield{
			RunID:      record.RunID,
			Card:       record.Card,
			Category:   record.Category,
			Process:    record.Process,
			ProcIndex:  record.ProcIndex,
			Yield:      record.Yield,
			RecordedAt: record.RecordedAt,
		}
	}
	return result
}
