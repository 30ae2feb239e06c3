// Package category resolves free-form category labels to canonical
// unified categories. Labels drift between data sources ("07. Access
// Control & Identity Mgmt", "Access Control and Identity Management"),
// so resolution walks a fixed chain of normalizations and bounded
// variations before giving up.
//
// Resolution never returns an error: an unmappable label yields
// (zero value, false) and the caller falls back to generic content.
package category

import (
	"regexp"
	"strings"

	"harmonia/internal/logging"
	"harmonia/internal/types"
)

// Resolver maps category labels to canonical categories. The canonical
// table is read-only after construction, so Resolver is safe for
// concurrent use.
type Resolver struct {
	canonical []types.UnifiedCategory
	byExact   map[string]int // lowercased name/alias -> index into canonical
}

// NewResolver builds a resolver over the given canonical category table.
func NewResolver(categories []types.UnifiedCategory) *Resolver {
	r := &Resolver{
		canonical: categories,
		byExact:   make(map[string]int),
	}
	for i, cat := range categories {
		r.byExact[strings.ToLower(cat.Name)] = i
		for _, alias := range cat.Aliases {
			r.byExact[strings.ToLower(alias)] = i
		}
	}
	return r
}

// Resolve walks the fallback chain for a label:
//
//  1. exact match against canonical names and aliases
//  2. normalized label (ordinal prefix stripped, parentheticals trimmed,
//     whitespace collapsed) retried exactly
//  3. bounded variation set (ampersand/"and" swap, Management/Control
//     suffix add and remove, abbreviation expansion) tried in fixed order
//  4. not found
func (r *Resolver) Resolve(label string) (types.UnifiedCategory, bool) {
	// Step 1: exact
	if cat, ok := r.lookup(label); ok {
		return cat, true
	}

	// Step 2: normalize and retry
	normalized := NormalizeLabel(label)
	if cat, ok := r.lookup(normalized); ok {
		logging.ResolverDebug("resolved %q via normalization to %q", label, cat.Name)
		return cat, true
	}

	// Step 3: bounded variations, first hit wins
	for _, variant := range variations(normalized) {
		if cat, ok := r.lookup(variant); ok {
			logging.ResolverDebug("resolved %q via variant %q to %q", label, variant, cat.Name)
			return cat, true
		}
	}

	// Step 4: not found; caller uses generic fallback
	logging.ResolverDebug("no canonical category for label %q", label)
	return types.UnifiedCategory{}, false
}

// Categories returns the canonical table.
func (r *Resolver) Categories() []types.UnifiedCategory {
	return r.canonical
}

func (r *Resolver) lookup(label string) (types.UnifiedCategory, bool) {
	if i, ok := r.byExact[strings.ToLower(strings.TrimSpace(label))]; ok {
		return r.canonical[i], true
	}
	return types.UnifiedCategory{}, false
}

// =============================================================================
// NORMALIZATION
// =============================================================================

var (
	ordinalPrefixRe = regexp.MustCompile(`^\s*\d+\.?\s+`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// NormalizeLabel strips a leading "NN. " ordinal prefix, trims
// parenthetical notes, and collapses whitespace.
func NormalizeLabel(label string) string {
	out := ordinalPrefixRe.ReplaceAllString(label, "")
	out = parentheticalRe.ReplaceAllString(out, "")
	out = whitespaceRunRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// abbreviations is the known abbreviation-expansion table, applied
// word-wise during variation generation.
var abbreviations = map[string]string{
	"mgmt":   "Management",
	"mgt":    "Management",
	"ctrl":   "Control",
	"sec":    "Security",
	"info":   "Information",
	"gov":    "Governance",
	"bc":     "Business Continuity",
	"dr":     "Disaster Recovery",
	"ir":     "Incident Response",
	"hr":     "Human Resources",
	"id":     "Identity",
	"auth":   "Authentication",
	"vuln":   "Vulnerability",
	"config": "Configuration",
}

// variations generates the bounded variant set for a normalized label,
// in a fixed order so resolution is deterministic.
func variations(label string) []string {
	var out []string
	seen := map[string]bool{label: true}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	// Ampersand <-> "and" swap
	if strings.Contains(label, "&") {
		add(strings.ReplaceAll(label, "&", "and"))
		add(strings.ReplaceAll(label, " & ", " and "))
	}
	if strings.Contains(strings.ToLower(label), " and ") {
		add(replaceFold(label, " and ", " & "))
	}

	// Abbreviation expansion, word-wise
	add(expandAbbreviations(label))

	// Combined: swap plus expansion
	if strings.Contains(label, "&") {
		add(expandAbbreviations(strings.ReplaceAll(label, "&", "and")))
	}
	if strings.Contains(strings.ToLower(label), " and ") {
		add(expandAbbreviations(replaceFold(label, " and ", " & ")))
	}

	// Suffix add/remove
	lower := strings.ToLower(label)
	switch {
	case strings.HasSuffix(lower, " management"):
		add(label[:len(label)-len(" management")])
	case strings.HasSuffix(lower, " control"):
		add(label[:len(label)-len(" control")])
	default:
		add(label + " Management")
		add(label + " Control")
	}

	return out
}

// expandAbbreviations replaces each known abbreviation token with its
// expansion, preserving the rest of the label.
func expandAbbreviations(label string) string {
	words := strings.Fields(label)
	changed := false
	for i, w := range words {
		key := strings.ToLower(strings.Trim(w, ".,"))
		if full, ok := abbreviations[key]; ok {
			words[i] = full
			changed = true
		}
	}
	if !changed {
		return label
	}
	return strings.Join(words, " ")
}

// replaceFold replaces old with new, matching old case-insensitively.
func replaceFold(s, old, new string) string {
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(oldLower):]
	}
}
