package combine

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/topljets/cardgen/schema"
)

// FreezeAll freezes every nuisance.
const FreezeAll = "all"

// RateSuffix names the companion rate row of a shape systematic.
const RateSuffix = "Rate"

// Matches reports whether a nuisance name overlaps any token: either string
// contains the other, or the token is a glob pattern matching the name.
func Matches(name string, tokens []string) bool {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(name, tok) || strings.Contains(tok, name) {
			return true
		}
		if ok, err := doublestar.Match(tok, name); err == nil && ok {
			return true
		}
	}
	return false
}

// KeepSystematic reports whether name survives the removal list.
func KeepSystematic(name string, remove []string) bool {
	return !Matches(name, remove)
}

// RemoveNuisances drops every systematic matching the removal list.
func RemoveNuisances(c schema.Catalog, remove []string) schema.Catalog {
	if len(remove) == 0 {
		return c
	}
	return c.Filter(func(name string) bool { return KeepSystematic(name, remove) })
}

// FreezeList renders the --freezeNuisances argument. Shape systematics
// with a rate companion contribute their Rate row as well, and channel
// placeholders expand to the final states present in categories.
func FreezeList(c schema.Catalog, freeze, categories []string) string {
	if len(freeze) == 0 {
		return ""
	}
	if slices.Contains(freeze, FreezeAll) {
		return FreezeAll
	}

	var names []string
	for _, s := range c.Rate {
		if Matches(s.Name, freeze) {
			names = append(names, s.Name)
		}
	}
	for _, s := range c.Weight {
		if Matches(s.Name, freeze) {
			names = append(names, s.Name)
		}
	}
	for _, s := range c.File {
		if Matches(s.Name, freeze) {
			names = append(names, s.Name)
		}
	}
	for _, s := range c.Weight {
		if s.Treatment == schema.ShapeAndRate && Matches(s.Name, freeze) {
			names = append(names, s.Name+RateSuffix)
		}
	}
	for _, s := range c.File {
		if s.Treatment == schema.ShapeAndRate && Matches(s.Name, freeze) {
			names = append(names, s.Name+RateSuffix)
		}
	}

	var out []string
	for _, n := range names {
		if !strings.Contains(n, schema.ChannelPlaceholder) {
			out = append(out, n)
			continue
		}
		out = append(out, ExpandChannels(n, categories)...)
	}
	return strings.Join(out, ",")
}

// ExpandChannels replaces the channel placeholder of name with every lepton
// final state appearing in the category names.
func ExpandChannels(name string, categories []string) []string {
	var out []string
	for _, ch := range schema.LeptonChannels {
		if slices.ContainsFunc(categories, func(cat string) bool { return strings.Contains(cat, ch) }) {
			out = append(out, strings.ReplaceAll(name, schema.ChannelPlaceholder, ch))
		}
	}
	return out
}
