// Package harmonize merges a semantic cluster of requirement statements
// into one harmonized sub-requirement with full provenance.
//
// Merging is phrase-level: each member statement is split into obligation
// phrases, and phrases are deduplicated by normalized-text equality, not
// by the semantic score. Two obligations that are topically similar but
// textually distinct both survive the merge; only true rewordings fold.
//
// When members impose conflicting quantitative obligations (differing
// deadlines, retention periods, minimum bars) the stricter obligation is
// retained and a conflict note records the superseded alternative with
// its provenance. Most-conservative-wins is a deliberate policy: a reader
// complying with the harmonized statement must comply with every source.
package harmonize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"harmonia/internal/logging"
	"harmonia/internal/similarity"
	"harmonia/internal/types"
)

// Harmonizer merges clusters into harmonized sub-requirements.
// Stateless and safe for concurrent use.
type Harmonizer struct{}

// NewHarmonizer returns a ready Harmonizer.
func NewHarmonizer() *Harmonizer {
	return &Harmonizer{}
}

// Harmonize merges one cluster's members into a single sub-requirement.
// The ordinal label is assigned later by HarmonizeSet; Text here carries
// no ordinal prefix yet. A cluster of size 1 yields the lightly cleaned
// source text, which is a valid case, not an error.
func (h *Harmonizer) Harmonize(members []types.SourceRequirement) types.HarmonizedSubRequirement {
	provenance := make([]types.ProvenanceRef, 0, len(members))
	for _, m := range members {
		provenance = append(provenance, m.Ref())
	}

	if len(members) == 1 {
		return types.HarmonizedSubRequirement{
			Text:       cleanText(members[0].Text),
			Provenance: provenance,
		}
	}

	phrases := collectPhrases(members)
	merged, note := resolveConflicts(phrases)

	texts := make([]string, 0, len(merged))
	for _, p := range merged {
		texts = append(texts, p.text)
	}

	sub := types.HarmonizedSubRequirement{
		Text:         cleanText(strings.Join(texts, "; ")),
		Provenance:   provenance,
		ConflictNote: note,
	}
	logging.HarmonizeDebug("merged %d members into %d phrases (conflict=%v)",
		len(members), len(merged), note != "")
	return sub
}

// HarmonizeSet merges every cluster and assigns ordinal labels in
// cluster order, producing the ordered sub-requirement list for one
// category. byID maps requirement IDs to their source statements.
func (h *Harmonizer) HarmonizeSet(clusters []types.SemanticCluster, byID map[string]types.SourceRequirement) []types.HarmonizedSubRequirement {
	subs := make([]types.HarmonizedSubRequirement, 0, len(clusters))
	for i, c := range clusters {
		members := make([]types.SourceRequirement, 0, len(c.Members))
		for _, id := range c.Members {
			if st, ok := byID[id]; ok {
				members = append(members, st)
			}
		}
		if len(members) == 0 {
			continue
		}
		sub := h.Harmonize(members)
		sub.OrdinalLabel = OrdinalLabel(i)
		sub.Text = sub.OrdinalLabel + ") " + sub.Text
		subs = append(subs, sub)
	}
	return subs
}

// OrdinalLabel returns the label for the i-th sub-requirement:
// a..z, then aa, ab, ...
func OrdinalLabel(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return OrdinalLabel(i/26-1) + OrdinalLabel(i%26)
}

// =============================================================================
// PHRASE COLLECTION
// =============================================================================

// phrase is one obligation phrase with the provenance of the member it
// came from.
type phrase struct {
	text string
	ref  types.ProvenanceRef
}

var phraseSplitRe = regexp.MustCompile(`[.;]\s+|[.;]$`)

// collectPhrases splits every member into phrases and deduplicates by
// normalized-text equality, keeping first-seen order.
func collectPhrases(members []types.SourceRequirement) []phrase {
	var out []phrase
	seen := make(map[string]bool)
	for _, m := range members {
		for _, raw := range phraseSplitRe.Split(m.Text, -1) {
			p := strings.TrimSpace(raw)
			if p == "" {
				continue
			}
			key := similarity.NormalizeKey(p)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, phrase{text: p, ref: m.Ref()})
		}
	}
	return out
}

// =============================================================================
// CONFLICT RESOLUTION
// =============================================================================

// obligation is a quantitative/temporal bound extracted from a phrase.
type obligation struct {
	value   float64 // numeric value as written
	unit    string  // "", or a duration unit
	inHours float64 // comparable magnitude for durations
	minimum bool    // true for "at least" style bounds, where higher is stricter
	raw     string  // the matched text, e.g. "72 hours"
}

var durationRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(minute|hour|day|week|month|year)s?\b`)
var bareNumberRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\b`)
var minimumCueRe = regexp.MustCompile(`(?i)\b(at least|a minimum of|no less than|minimum)\b`)

var hoursPerUnit = map[string]float64{
	"minute": 1.0 / 60,
	"hour":   1,
	"day":    24,
	"week":   168,
	"month":  730,
	"year":   8760,
}

// extractObligation finds the first quantitative bound in a phrase, or
// nil when the phrase carries none.
func extractObligation(text string) *obligation {
	minimum := minimumCueRe.MatchString(text)

	if m := durationRe.FindStringSubmatch(text); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		unit := strings.ToLower(m[2])
		return &obligation{
			value:   value,
			unit:    unit,
			inHours: value * hoursPerUnit[unit],
			minimum: minimum,
			raw:     strings.TrimSpace(m[0]),
		}
	}

	if m := bareNumberRe.FindStringSubmatch(text); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		return &obligation{value: value, inHours: value, minimum: minimum, raw: m[0]}
	}
	return nil
}

// stricter reports whether a is the stricter of two comparable bounds.
// Deadlines and ceilings: lower wins. Minimum bars: higher wins.
func (o *obligation) stricter(other *obligation) bool {
	if o.minimum || other.minimum {
		return o.inHours > other.inHours
	}
	return o.inHours < other.inHours
}

// maskedKey folds a phrase's numbers away so that two phrases differing
// only in their quantitative bound compare equal.
func maskedKey(text string) string {
	return similarity.NormalizeKey(bareNumberRe.ReplaceAllString(text, "#"))
}

var deadlineCueRe = regexp.MustCompile(`(?i)\b(within|no later than|at most|not exceed|before)\b`)

// cueClass classifies a duration obligation by its surrounding cue:
// "deadline" for upper time bounds, "minimum" for lower bars, ""
// otherwise. Bare numbers carry no cue class.
func cueClass(text string, ob *obligation) string {
	if ob.unit == "" {
		return ""
	}
	switch {
	case ob.minimum:
		return "minimum"
	case deadlineCueRe.MatchString(text):
		return "deadline"
	}
	return ""
}

// rewordingThreshold is the masked-wording similarity above which two
// cue-matched duration phrases count as rewordings of one obligation.
// Distinct obligations that merely share a cue ("report within 72
// hours" vs "remediate within 30 days") fall well below it.
const rewordingThreshold = 0.6

// resolveConflicts collapses phrases that state the same quantitative
// obligation with different bounds, keeping the stricter bound. Phrases
// compete only when their number-masked wording matches exactly, or
// shares a cue class and scores as a rewording; a phrase carrying a
// different obligation survives untouched even if it shares a cue.
// Returns the surviving phrases in first-seen order plus a conflict
// note describing every superseded alternative.
func resolveConflicts(phrases []phrase) ([]phrase, string) {
	type slot struct {
		index  int // position in output
		ob     *obligation
		masked string
		cue    string
	}
	var out []phrase
	var slots []*slot
	var notes []string

	for _, p := range phrases {
		ob := extractObligation(p.text)
		if ob == nil {
			out = append(out, p)
			continue
		}
		masked := maskedKey(p.text)
		cue := cueClass(p.text, ob)

		var match *slot
		for _, s := range slots {
			if s.masked == masked || (cue != "" && cue == s.cue &&
				similarity.TextSimilarity(masked, s.masked) >= rewordingThreshold) {
				match = s
				break
			}
		}
		if match == nil {
			slots = append(slots, &slot{index: len(out), ob: ob, masked: masked, cue: cue})
			out = append(out, p)
			continue
		}

		kept := out[match.index]
		if ob.stricter(match.ob) {
			// Incoming bound supersedes the kept phrase
			notes = append(notes, supersessionNote(cue, match.ob, kept.ref, ob, p.ref))
			out[match.index] = p
			match.ob = ob
			match.masked = masked
		} else if ob.inHours != match.ob.inHours {
			notes = append(notes, supersessionNote(cue, ob, p.ref, match.ob, kept.ref))
		}
		// Equal bounds: plain duplicate wording, nothing to record
	}

	return out, strings.Join(notes, "; ")
}

// supersessionNote records that two statements of one obligation carried
// different bounds and the stricter was kept. Naming the obligation kind
// keeps the note readable when the bounds use different units.
func supersessionNote(cue string, loser *obligation, loserRef types.ProvenanceRef, winner *obligation, winnerRef types.ProvenanceRef) string {
	kind := "numeric"
	switch cue {
	case "deadline":
		kind = "deadline"
	case "minimum":
		kind = "minimum"
	}
	return fmt.Sprintf("same %s obligation: %q (%s) superseded by stricter %q (%s)",
		kind, loser.raw, loserRef, winner.raw, winnerRef)
}

// =============================================================================
// TEXT CLEANUP
// =============================================================================

// cleanText trims whitespace, uppercases the first letter, and ensures a
// terminal period.
func cleanText(text string) string {
	out := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if out == "" {
		return out
	}
	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	out = string(runes)
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)
