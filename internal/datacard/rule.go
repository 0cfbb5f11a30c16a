// Package datacard writes and parses Combine text datacards.
package datacard

import (
	"fmt"
	"math"
	"slices"
)

// RateExclusionPrefix in a black list excludes a process from the rate
// companion row only.
const RateExclusionPrefix = "-"

// Rule decides which processes a systematic applies to.
type Rule struct {
	White []string
	Black []string
}

// Includes reports whether proc is affected: an empty white list accepts
// everything not black-listed, otherwise only white-listed processes are.
func (r Rule) Includes(proc string) bool {
	if slices.Contains(r.White, proc) {
		return true
	}
	return len(r.White) == 0 && !slices.Contains(r.Black, proc)
}

// IncludesRate is Includes that also honours "-proc" black list entries.
func (r Rule) IncludesRate(proc string) bool {
	if slices.Contains(r.White, proc) {
		return true
	}
	return len(r.White) == 0 &&
		!slices.Contains(r.Black, proc) &&
		!slices.Contains(r.Black, RateExclusionPrefix+proc)
}

// Rate-uncertainty limits.
const (
	negligibleShift = 0.001
	maxRateUp       = 2.0
	minRateDown     = 0.5
	minAsymDown     = 0.01
)

// RateUncertainty formats a lnN entry from the relative yields of the down
// and up variations. ok is false when both shifts are below 0.1%.
// Same-sided variations are symmetrised on the larger shift and saturated
// at 2 (up) or 0.5 (down).
func RateUncertainty(dn, up float64) (string, bool) {
	if math.Abs(up-1) < negligibleShift && math.Abs(dn-1) < negligibleShift {
		return "", false
	}
	switch {
	case up > 1 && dn > 1:
		return fmt.Sprintf("%3.3f", math.Min(math.Max(up, dn), maxRateUp)), true
	case up < 1 && dn < 1:
		return fmt.Sprintf("%3.3f", math.Max(math.Min(up, dn), minRateDown)), true
	default:
		return fmt.Sprintf("%3.3f/%3.3f", dn, up), true
	}
}

// FormatRateValue formats a fixed rate systematic: one symmetric value, or a
// down/up pair with the down side kept above 0.01.
func FormatRateValue(values []float64) string {
	if len(values) >= 2 {
		return fmt.Sprintf("%3.3f/%3.3f", math.Max(values[0], minAsymDown), values[1])
	}
	if len(values) == 1 {
		return fmt.Sprintf("%3.3f", values[0])
	}
	return Unaffected
}
