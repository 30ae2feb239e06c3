package similarity

import (
	"testing"

	"harmonia/internal/types"
)

func req(fw, code, text string) types.SourceRequirement {
	return types.SourceRequirement{ID: fw + ":" + code, FrameworkID: fw, Code: code, Text: text}
}

func TestScore_IdenticalText(t *testing.T) {
	s := NewScorer()
	a := req("iso", "5.3", "The organization shall establish an access control policy.")
	b := req("nist", "AC-1", "The organization shall establish an access control policy.")

	if got := s.Score(a, b); got < 0.999 {
		t.Fatalf("Score() = %v, want ~1.0 for identical text", got)
	}
}

func TestScore_NearDuplicatesScoreHigh(t *testing.T) {
	s := NewScorer()
	a := req("iso", "16.1", "Report security incidents to management within 24 hours of detection.")
	b := req("gdpr", "33", "Security incidents shall be reported to management within 24 hours after detection.")

	got := s.Score(a, b)
	if got < 0.75 {
		t.Fatalf("Score() = %v, want >= 0.75 for near-duplicate obligations", got)
	}
}

func TestScore_UnrelatedScoreLow(t *testing.T) {
	s := NewScorer()
	a := req("iso", "5.3", "Establish an access control policy for all information systems.")
	b := req("nis2", "21", "Maintain offsite backups of critical data with quarterly restore tests.")

	got := s.Score(a, b)
	if got > 0.4 {
		t.Fatalf("Score() = %v, want low score for unrelated obligations", got)
	}
}

func TestScore_Symmetric(t *testing.T) {
	s := NewScorer()
	a := req("iso", "8.12", "Data leakage prevention measures shall be applied.")
	b := req("nist", "SC-7", "Apply measures preventing leakage of data at boundaries.")

	if ab, ba := s.Score(a, b), s.Score(b, a); ab != ba {
		t.Fatalf("Score not symmetric: %v vs %v", ab, ba)
	}
}

func TestScore_EmptyText(t *testing.T) {
	s := NewScorer()
	empty := req("iso", "0.0", "")
	other := req("nist", "AC-1", "Establish an access control policy.")

	if got := s.Score(empty, other); got != 0 {
		t.Fatalf("Score(empty, text) = %v, want 0", got)
	}
	if got := s.Score(empty, empty); got != 1 {
		t.Fatalf("Score(empty, same empty) = %v, want 1 (degenerate self-match)", got)
	}

	otherEmpty := req("nist", "AC-9", "")
	if got := s.Score(empty, otherEmpty); got != 0 {
		t.Fatalf("Score(empty, different empty) = %v, want 0", got)
	}
}

func TestScore_StopWordsOnlyTextIsEmpty(t *testing.T) {
	s := NewScorer()
	a := req("iso", "1.1", "and the of with")
	b := req("nist", "AC-2", "Review user access rights.")

	if got := s.Score(a, b); got != 0 {
		t.Fatalf("Score(stopwords-only, text) = %v, want 0", got)
	}
}

func TestTokenize_StemsAndFilters(t *testing.T) {
	got := Tokenize("Reviewing the access policies and controls")
	want := []string{"review", "access", "policy", "control"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizeKey_FoldsVariants(t *testing.T) {
	a := NormalizeKey("Encrypt data at rest.")
	b := NormalizeKey("encrypt data at rest")
	if a != b {
		t.Fatalf("NormalizeKey mismatch: %q vs %q", a, b)
	}
}

func TestTextSimilarity(t *testing.T) {
	high := TextSimilarity(
		"Report incidents to the authority within hours",
		"Incidents shall be reported to the authority within hours",
	)
	if high < 0.8 {
		t.Fatalf("TextSimilarity(rewordings) = %.3f, want >= 0.8", high)
	}

	low := TextSimilarity(
		"Report incidents to the authority within hours",
		"Remediate detected vulnerabilities within days",
	)
	if low > 0.5 {
		t.Fatalf("TextSimilarity(distinct obligations) = %.3f, want <= 0.5", low)
	}

	if got := TextSimilarity("", "the and of"); got != 0 {
		t.Fatalf("TextSimilarity(empty, stop words) = %.3f, want 0", got)
	}
}
