package schema

import "strings"

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string

	// MirrorMode represents how a missing down variation is rebuilt from the up variation.
	MirrorMode string

	// ShapeTreatment controls how a shape systematic is post-processed.
	ShapeTreatment int
)

// All output modes supported.
const (
	TextOut     OutputMode = "text" // default
	CSVOut      OutputMode = "csv"
	JSONOut     OutputMode = "json"
	MarkdownOut OutputMode = "markdown"
	ParquetOut  OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All mirror modes supported.
const (
	MirrorNominal   MirrorMode = "nominal"   // down = nominal (default)
	MirrorSymmetric MirrorMode = "symmetric" // down = 2*nominal - up
)

// Shape treatments.
const (
	// ShapeOnly writes the variation as-is.
	ShapeOnly ShapeTreatment = 0
	// ShapeNormalized normalizes the variation to the nominal yield.
	ShapeNormalized ShapeTreatment = 1
	// ShapeAndRate normalizes the variation and adds a companion rate row.
	ShapeAndRate ShapeTreatment = 2
)

// ChannelPlaceholder is substituted with the lepton final state of a category.
const ChannelPlaceholder = "*CH*"

// LeptonChannels lists the dilepton final states known to the hypothesis test.
var LeptonChannels = []string{"EE", "EM", "MM"}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:     {},
	CSVOut:      {},
	JSONOut:     {},
	MarkdownOut: {},
	ParquetOut:  {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidMirrorModes lists all valid mirror modes.
var ValidMirrorModes = map[MirrorMode]struct{}{
	MirrorNominal:   {},
	MirrorSymmetric: {},
}

// CategoryChannel returns the lepton final state encoded in a category name.
// Categories without a recognised tag fall back to EE.
func CategoryChannel(cat string) string {
	ch := "EE"
	for _, c := range LeptonChannels[1:] {
		if strings.Contains(cat, c) {
			ch = c
		}
	}
	return ch
}
