// Package similarity scores pairwise semantic similarity between
// requirement statements using bag-of-normalized-terms cosine similarity.
//
// Pipeline per statement:
//
//	lowercase -> strip punctuation -> drop stop words -> stem suffixes
//	     |
//	term-frequency vector -> cosine against the other statement
//
// Normalization is pure and order independent, so scores are fully
// deterministic. Scoring never fails: empty text scores 0 against
// anything, and 1 only against another empty statement with identical
// framework and code (degenerate self-match), so empty statements never
// wrongly merge.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"harmonia/internal/logging"
	"harmonia/internal/types"
)

// Scorer computes similarity between two requirement statements.
// Stateless and safe for concurrent use.
type Scorer struct{}

// NewScorer returns a ready Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the cosine similarity of the two statements' normalized
// term vectors, in [0,1].
func (s *Scorer) Score(a, b types.SourceRequirement) float64 {
	va := TermVector(a.Text)
	vb := TermVector(b.Text)

	if len(va) == 0 || len(vb) == 0 {
		// Degenerate self-match: two empty statements are identical only
		// when they are literally the same source entry.
		if len(va) == 0 && len(vb) == 0 &&
			a.FrameworkID == b.FrameworkID && a.Code == b.Code {
			return 1.0
		}
		return 0.0
	}

	score := cosine(va, vb)
	logging.SimilarityDebug("score(%s %s, %s %s) = %.4f", a.FrameworkID, a.Code, b.FrameworkID, b.Code, score)
	return score
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// TermVector builds the normalized term-frequency vector for a text.
// Exposed for the harmonizer's phrase-level dedup, which relies on the
// same normalization rules.
func TermVector(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, tok := range Tokenize(text) {
		vec[tok]++
	}
	return vec
}

// Tokenize lowercases, splits on non-letter/digit runes, removes stop
// words, and stems each surviving token.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if isStopWord(f) {
			continue
		}
		stemmed := stem(f)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// NormalizeKey returns the canonical form of a phrase used for equality
// comparison: normalized tokens joined by single spaces.
func NormalizeKey(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// TextSimilarity returns the cosine similarity of two texts' normalized
// term vectors, in [0,1]. Unlike Score there is no degenerate self-match
// rule: empty text scores 0 against anything.
func TextSimilarity(a, b string) float64 {
	va, vb := TermVector(a), TermVector(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}
	return cosine(va, vb)
}

// stem applies a light suffix stripper. Deliberately conservative: it
// only needs to fold inflection variants of the same obligation wording,
// not be linguistically complete.
func stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ing") && len(word) > 5:
		return word[:len(word)-3]
	case strings.HasSuffix(word, "ed") && len(word) > 4:
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	}
	return word
}

// cosine computes cosine similarity between two sparse TF vectors.
func cosine(a, b map[string]float64) float64 {
	var dot, magA, magB float64
	for term, wa := range a {
		magA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		magB += wb * wb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	result := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Guard against float drift above 1.0
	if result > 1.0 {
		result = 1.0
	}
	return result
}

// isStopWord returns true if the word carries no obligation content.
func isStopWord(word string) bool {
	return stopWords[word]
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"with": true, "at": true, "by": true, "from": true, "as": true,
	"into": true, "through": true, "during": true, "before": true,
	"after": true, "and": true, "but": true, "or": true, "nor": true,
	"so": true, "if": true, "then": true, "else": true, "when": true,
	"where": true, "all": true, "each": true, "every": true,
	"both": true, "more": true, "most": true, "other": true,
	"some": true, "such": true, "no": true, "not": true, "only": true,
	"own": true, "same": true, "than": true, "too": true, "very": true,
	"can": true, "just": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true,
	"their": true, "there": true, "which": true, "who": true,
	"whom": true, "any": true, "per": true, "upon": true,
	// Obligation modals stay: "shall"/"must"/"should" distinguish
	// binding wording from advisory wording and carry signal here.
}
