package schema

import "time"

// RunRecord represents a row from the cardgen_runs table.
type RunRecord struct {
	RunID         int64
	RunUUID       string
	Command       string
	OutputDir     string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalCards    int32
	ConfigParams  *string
}

// CardYieldRecord represents a row from the cardgen_card_yields table.
type CardYieldRecord struct {
	RunID      int64
	Card       string
	Category   string
	Process    string
	ProcIndex  int32
	Yield      float64
	RecordedAt time.Time
}
