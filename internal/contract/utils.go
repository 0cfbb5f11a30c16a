package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/fatih/color"
)

// AppName is used for XDG directories and generated-file headers.
const AppName = "cardgen"

// Yield label constants.
const (
	EmptyValue    = "Empty"    // no expected events
	LowStatsValue = "LowStats" // fewer than one expected event
	NominalValue  = "Nominal"  // regular yield
)

// Color variables for console output.
var (
	EmptyColor    = color.New(color.FgRed, color.Bold) // EmptyColor flags processes that cannot be fitted.
	LowStatsColor = color.New(color.FgYellow)          // LowStatsColor flags statistically fragile processes.
	NominalColor  = color.New(color.FgCyan)            // NominalColor is informational.
	SignalColor   = color.New(color.FgMagenta, color.Bold)
)

// GetPlainLabel returns a plain text label describing a process yield.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(yield float64) string {
	switch {
	case yield <= 0:
		return EmptyValue
	case yield < 1:
		return LowStatsValue
	default:
		return NominalValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(yield float64) string {
	text := GetPlainLabel(yield)

	switch text {
	case EmptyValue:
		return EmptyColor.Sprint(text)
	case LowStatsValue:
		return LowStatsColor.Sprint(text)
	default:
		return NominalColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", filePath, err)
		}
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the histogram cache.
func GetCacheDBFilePath() string {
	return xdgPath(xdg.CacheHome, "hist_cache.db")
}

// GetRunsDBFilePath returns the path to the SQLite DB file for run tracking.
func GetRunsDBFilePath() string {
	return xdgPath(xdg.DataHome, "runs.db")
}

// xdgPath places name under base/cardgen, falling back to the working directory
// when the directory cannot be created.
func xdgPath(base, name string) string {
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "." + AppName + "_" + name
	}
	return filepath.Join(dir, name)
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 so the "..." prefix leaves room for content.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
