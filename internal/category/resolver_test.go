package category

import (
	"testing"

	"harmonia/internal/types"
)

func testResolver() *Resolver {
	return NewResolver([]types.UnifiedCategory{
		{Name: "Access Control & Identity Management", Aliases: []string{"Identity & Access Management"}},
		{Name: "Incident Response", Aliases: []string{"Incident Management"}},
		{Name: "Risk Management"},
		{Name: "Physical Security"},
	})
}

func TestResolve_ExactMatch(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Incident Response")
	if !ok || cat.Name != "Incident Response" {
		t.Fatalf("Resolve() = (%q, %v), want exact hit", cat.Name, ok)
	}
}

func TestResolve_ExactMatchIsCaseInsensitive(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("incident response")
	if !ok || cat.Name != "Incident Response" {
		t.Fatalf("Resolve() = (%q, %v), want case-insensitive hit", cat.Name, ok)
	}
}

func TestResolve_AliasMatch(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Incident Management")
	if !ok || cat.Name != "Incident Response" {
		t.Fatalf("Resolve() = (%q, %v), want alias hit", cat.Name, ok)
	}
}

func TestResolve_OrdinalPrefixAndAbbreviation(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("07. Access Control & Identity Mgmt")
	if !ok || cat.Name != "Access Control & Identity Management" {
		t.Fatalf("Resolve() = (%q, %v), want canonical via normalization chain", cat.Name, ok)
	}
}

func TestResolve_AmpersandAndSwap(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Access Control and Identity Management")
	if !ok || cat.Name != "Access Control & Identity Management" {
		t.Fatalf("Resolve() = (%q, %v), want hit via and->ampersand swap", cat.Name, ok)
	}
}

func TestResolve_ParentheticalTrim(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Risk Management (enterprise-wide)")
	if !ok || cat.Name != "Risk Management" {
		t.Fatalf("Resolve() = (%q, %v), want hit after parenthetical trim", cat.Name, ok)
	}
}

func TestResolve_SuffixAddition(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("3. Risk")
	if !ok || cat.Name != "Risk Management" {
		t.Fatalf("Resolve() = (%q, %v), want hit via Management suffix addition", cat.Name, ok)
	}
}

func TestResolve_SuffixRemoval(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Physical Security Management")
	if !ok || cat.Name != "Physical Security" {
		t.Fatalf("Resolve() = (%q, %v), want hit via Management suffix removal", cat.Name, ok)
	}
}

func TestResolve_NotFoundSignalsNoError(t *testing.T) {
	r := testResolver()
	cat, ok := r.Resolve("Quantum Entanglement Hygiene")
	if ok {
		t.Fatalf("Resolve() = (%q, true), want not found", cat.Name)
	}
}

func TestNormalizeLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"07. Access Control", "Access Control"},
		{"12 Incident  Response", "Incident Response"},
		{"Risk Management (see annex A)", "Risk Management"},
		{"  Physical   Security  ", "Physical Security"},
	}
	for _, tc := range cases {
		if got := NormalizeLabel(tc.in); got != tc.want {
			t.Fatalf("NormalizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
