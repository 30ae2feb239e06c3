// Package quality scores harmonized output against preservation,
// complexity, and clarity thresholds and decides accept or fallback.
//
// Gating is all-or-nothing per category: a set either passes whole or is
// discarded whole and replaced by fallback content. Clarity is reported
// but never gates.
package quality

import (
	"regexp"
	"strings"

	"harmonia/internal/logging"
	"harmonia/internal/types"
)

// Validator computes quality reports. Stateless and safe for concurrent
// use.
type Validator struct{}

// NewValidator returns a ready Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate scores a unified set against its sources under the given
// config. An empty source list is vacuously fully preserved.
func (v *Validator) Validate(set types.UnifiedRequirementSet, sources []types.SourceRequirement, cfg types.AbstractionConfig) types.QualityReport {
	report := types.QualityReport{
		CompliancePreservationScore: preservationScore(set, sources),
		ComplexityRatio:             complexityRatio(set, sources),
		ClarityScore:                ClarityScore(set),
	}

	report.Passed = report.CompliancePreservationScore >= cfg.EffectivePreservationFloor() &&
		report.ComplexityRatio <= cfg.ComplexityCeiling

	logging.QualityDebug("category %q: preservation=%.3f complexity=%.3f clarity=%.3f passed=%v",
		set.CategoryName, report.CompliancePreservationScore, report.ComplexityRatio,
		report.ClarityScore, report.Passed)
	return report
}

// preservationScore is the fraction of source requirements with at least
// one provenance link in the output. 1.0 vacuously for zero sources.
func preservationScore(set types.UnifiedRequirementSet, sources []types.SourceRequirement) float64 {
	if len(sources) == 0 {
		return 1.0
	}

	covered := make(map[types.ProvenanceRef]bool)
	for _, sub := range set.SubRequirements {
		for _, ref := range sub.Provenance {
			covered[ref] = true
		}
	}

	hits := 0
	for _, src := range sources {
		if covered[src.Ref()] {
			hits++
		}
	}
	return float64(hits) / float64(len(sources))
}

// complexityRatio is mean unified sub-requirement character length over
// mean source character length: it bounds per-statement bloat, so a
// category that legitimately keeps several distinct obligations is not
// punished for having several statements. Zero sources (or all-empty
// sources) yield ratio 0 so a vacuous set never fails the ceiling.
func complexityRatio(set types.UnifiedRequirementSet, sources []types.SourceRequirement) float64 {
	if len(sources) == 0 || len(set.SubRequirements) == 0 {
		return 0
	}
	var sourceTotal int
	for _, src := range sources {
		sourceTotal += len(src.Text)
	}
	if sourceTotal == 0 {
		return 0
	}
	meanSource := float64(sourceTotal) / float64(len(sources))

	var unifiedTotal int
	for _, sub := range set.SubRequirements {
		unifiedTotal += len(sub.Text)
	}
	meanUnified := float64(unifiedTotal) / float64(len(set.SubRequirements))
	return meanUnified / meanSource
}

// =============================================================================
// CLARITY HEURISTIC
// =============================================================================

// Sentences longer than this are penalized.
const longSentenceThreshold = 30 // words

var sentenceSplitRe = regexp.MustCompile(`[.;!?]\s*`)

// imperativeVerbs are verbs that open a well-formed control statement.
var imperativeVerbs = map[string]bool{
	"establish": true, "implement": true, "maintain": true, "ensure": true,
	"define": true, "document": true, "review": true, "report": true,
	"encrypt": true, "restrict": true, "monitor": true, "protect": true,
	"conduct": true, "perform": true, "apply": true, "verify": true,
	"assign": true, "segregate": true, "test": true, "retain": true,
	"limit": true, "record": true, "notify": true, "classify": true,
}

// ClarityScore is a bounded 0-1 heuristic: long sentences cost,
// imperative openings earn. Reporting only; never gates Passed.
func ClarityScore(set types.UnifiedRequirementSet) float64 {
	if len(set.SubRequirements) == 0 {
		return 0
	}

	var total float64
	for _, sub := range set.SubRequirements {
		total += clarityOfText(stripOrdinal(sub.Text))
	}
	return total / float64(len(set.SubRequirements))
}

func clarityOfText(text string) float64 {
	score := 0.5

	var sentences []string
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}
	if len(sentences) == 0 {
		return 0
	}

	long := 0
	imperative := 0
	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) > longSentenceThreshold {
			long++
		}
		if len(words) > 0 && imperativeVerbs[strings.ToLower(strings.Trim(words[0], ",:"))] {
			imperative++
		}
	}

	score -= 0.5 * float64(long) / float64(len(sentences))
	score += 0.5 * float64(imperative) / float64(len(sentences))

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

var ordinalPrefixRe = regexp.MustCompile(`^[a-z]+\)\s*`)

func stripOrdinal(text string) string {
	return ordinalPrefixRe.ReplaceAllString(text, "")
}
