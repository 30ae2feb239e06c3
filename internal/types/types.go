// Package types defines the shared data model for the requirement
// unification engine: source statements, clusters, harmonized output,
// quality reports, and run configuration.
//
// All types here are value objects with no back-references. The pipeline
// never mutates a SourceRequirement; everything downstream is derived.
package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SOURCE MODEL
// =============================================================================

// SourceRequirement is one control statement from one framework.
// Owned and supplied by the external requirement corpus; immutable here.
type SourceRequirement struct {
	ID           string
	FrameworkID  string
	Code         string // framework-local identifier, e.g. "5.3" or "A.8.12"
	Text         string
	CategoryHint string // optional upstream category tag, may be empty
}

// Ref returns the provenance reference for this requirement.
func (s SourceRequirement) Ref() ProvenanceRef {
	return ProvenanceRef{FrameworkID: s.FrameworkID, Code: s.Code}
}

// ProvenanceRef identifies a source statement by framework and code.
type ProvenanceRef struct {
	FrameworkID string
	Code        string
}

func (p ProvenanceRef) String() string {
	return p.FrameworkID + " " + p.Code
}

// UnifiedCategory is one canonical topical bucket plus its accepted
// alias strings. The set of categories is read-only configuration for
// the lifetime of a run.
type UnifiedCategory struct {
	Name    string
	Aliases []string
}

// =============================================================================
// CLUSTERING
// =============================================================================

// SimilarityEntry records one pairwise score that justified cluster
// membership.
type SimilarityEntry struct {
	AID   string
	BID   string
	Score float64
}

// SemanticCluster is a set of requirement IDs judged equivalent for one
// category. Members holds IDs in the deterministic processing order; the
// first member is the cluster representative.
type SemanticCluster struct {
	Members []string
	Scores  []SimilarityEntry
}

// Representative returns the ID of the first member, or "" for an empty
// cluster (which ClusterBuilder never produces).
func (c SemanticCluster) Representative() string {
	if len(c.Members) == 0 {
		return ""
	}
	return c.Members[0]
}

// =============================================================================
// HARMONIZED OUTPUT
// =============================================================================

// GenerationMode tags how a UnifiedRequirementSet was produced.
type GenerationMode string

const (
	ModeHarmonized       GenerationMode = "harmonized"
	ModeAuthoredTemplate GenerationMode = "authored-template"
	ModeGenericFallback  GenerationMode = "generic-fallback"
)

// HarmonizedSubRequirement is one merged, user-facing statement.
type HarmonizedSubRequirement struct {
	OrdinalLabel string // "a", "b", ...
	Text         string // includes the "a) " ordinal prefix
	Provenance   []ProvenanceRef
	ConflictNote string // non-empty when a conservative choice superseded a source obligation
}

// UnifiedRequirementSet is the per-category output of the engine.
type UnifiedRequirementSet struct {
	CategoryName    string
	SubRequirements []HarmonizedSubRequirement
	Quality         QualityReport
	Mode            GenerationMode
}

// QualityReport scores a harmonized output against the configured
// thresholds. ClarityScore is informational only and never gates Passed.
type QualityReport struct {
	CompliancePreservationScore float64
	ComplexityRatio             float64
	ClarityScore                float64
	Passed                      bool
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// AbstractionMode selects how strictly the quality gate applies.
type AbstractionMode string

const (
	ModeStrict       AbstractionMode = "strict"
	ModeSmart        AbstractionMode = "smart"
	ModeTemplateOnly AbstractionMode = "template-only"
)

// AbstractionConfig is the run-scoped engine configuration. Constructed
// once per request and read-only thereafter.
type AbstractionConfig struct {
	SimilarityThreshold float64
	ComplexityCeiling   float64
	PreservationFloor   float64
	Mode                AbstractionMode
	FallbackStrategy    string
}

// DefaultAbstractionConfig returns the documented defaults.
func DefaultAbstractionConfig() AbstractionConfig {
	return AbstractionConfig{
		SimilarityThreshold: 0.75,
		ComplexityCeiling:   1.3,
		PreservationFloor:   0.95,
		Mode:                ModeSmart,
		FallbackStrategy:    "authored-then-generic",
	}
}

// Validate rejects malformed configuration before a run starts. This is
// the only fatal failure in the engine; every other condition degrades
// to fallback content.
func (c AbstractionConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrConfigurationInvalid, c.SimilarityThreshold)
	}
	if c.PreservationFloor < 0 || c.PreservationFloor > 1 {
		return fmt.Errorf("%w: preservation floor %v outside [0,1]", ErrConfigurationInvalid, c.PreservationFloor)
	}
	if c.ComplexityCeiling <= 1 {
		return fmt.Errorf("%w: complexity ceiling %v must exceed 1", ErrConfigurationInvalid, c.ComplexityCeiling)
	}
	switch c.Mode {
	case ModeStrict, ModeSmart, ModeTemplateOnly:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrConfigurationInvalid, c.Mode)
	}
	return nil
}

// EffectivePreservationFloor returns 1.0 under strict mode, otherwise
// the configured floor.
func (c AbstractionConfig) EffectivePreservationFloor() float64 {
	if c.Mode == ModeStrict {
		return 1.0
	}
	return c.PreservationFloor
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Sentinel errors for the engine's failure taxonomy. Only
// ErrConfigurationInvalid ever crosses the engine boundary; the rest are
// absorbed internally and surface as generation-mode metadata.
var (
	ErrConfigurationInvalid  = errors.New("configuration invalid")
	ErrResolutionMiss        = errors.New("category label unresolvable")
	ErrEmptyCategory         = errors.New("no source requirements for category")
	ErrQualityBelowThreshold = errors.New("harmonized output below quality threshold")
)

// =============================================================================
// CACHE KEYS
// =============================================================================

// CacheKey builds the canonical cache key for a (framework set, category)
// request. Framework IDs are sorted so key construction is order
// independent.
func CacheKey(frameworkIDs []string, categoryLabel string) string {
	ids := make([]string, len(frameworkIDs))
	copy(ids, frameworkIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",") + "|" + categoryLabel
}
