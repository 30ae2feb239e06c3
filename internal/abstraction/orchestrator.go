// Package abstraction drives the per-category unification pipeline:
//
//	Resolving -> Clustering -> Harmonizing -> Validating
//	     -> {Accepted | FallingBack} -> Done
//
// Done always yields a non-empty UnifiedRequirementSet. The engine's
// hard contract is never return an empty category: content quality
// degrades silently and visibly (via the generation-mode tag), but the
// request never fails. The single fatal error is invalid configuration,
// rejected before any run starts.
package abstraction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"harmonia/internal/category"
	"harmonia/internal/cluster"
	"harmonia/internal/harmonize"
	"harmonia/internal/logging"
	"harmonia/internal/quality"
	"harmonia/internal/types"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// RequirementSource supplies source statements from the external corpus.
type RequirementSource interface {
	// LoadSourceRequirements returns the statements for the given
	// frameworks whose category hint matches the (canonical or raw)
	// category label.
	LoadSourceRequirements(frameworkIDs []string, categoryLabel string) ([]types.SourceRequirement, error)
}

// CategorySource supplies the canonical category table.
type CategorySource interface {
	LoadCanonicalCategories() ([]types.UnifiedCategory, error)
}

// TemplateSource supplies authored template content per canonical
// category. found=false is a normal outcome, not an error.
type TemplateSource interface {
	LoadAuthoredTemplate(canonicalName string) (lines []string, found bool, err error)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is a pipeline stage for one (frameworkSet, category) request.
type State string

const (
	StateResolving   State = "resolving"
	StateClustering  State = "clustering"
	StateHarmonizing State = "harmonizing"
	StateValidating  State = "validating"
	StateAccepted    State = "accepted"
	StateFallingBack State = "falling-back"
	StateDone        State = "done"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator owns the run configuration and result cache and drives
// the pipeline. Categories are independent; the cache is the only state
// shared between concurrent category computations.
type Orchestrator struct {
	cfg        types.AbstractionConfig
	resolver   *category.Resolver
	builder    *cluster.Builder
	harmonizer *harmonize.Harmonizer
	validator  *quality.Validator
	cache      *ResultCache

	requirements RequirementSource
	templates    TemplateSource

	// Workers bounds batch parallelism in UnifyAll.
	Workers int
}

// NewOrchestrator validates the configuration and wires the pipeline.
// The returned error wraps types.ErrConfigurationInvalid and is the only
// error the engine ever raises for content reasons.
func NewOrchestrator(
	cfg types.AbstractionConfig,
	scorerBuilder *cluster.Builder,
	categories CategorySource,
	requirements RequirementSource,
	templates TemplateSource,
	cache *ResultCache,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	canonical, err := categories.LoadCanonicalCategories()
	if err != nil {
		return nil, fmt.Errorf("loading canonical categories: %w", err)
	}

	if cache == nil {
		cache = NewResultCache(0)
	}

	return &Orchestrator{
		cfg:          cfg,
		resolver:     category.NewResolver(canonical),
		builder:      scorerBuilder,
		harmonizer:   harmonize.NewHarmonizer(),
		validator:    quality.NewValidator(),
		cache:        cache,
		requirements: requirements,
		templates:    templates,
		Workers:      4,
	}, nil
}

// Config returns the run configuration.
func (o *Orchestrator) Config() types.AbstractionConfig {
	return o.cfg
}

// Cache exposes the result cache, mainly for tests and observability.
func (o *Orchestrator) Cache() *ResultCache {
	return o.cache
}

// UnifyCategory runs the pipeline for one category. The returned error
// is non-nil only for collaborator I/O failures; every content-level
// condition (unresolvable label, empty category, failed quality gate)
// degrades to fallback output.
func (o *Orchestrator) UnifyCategory(frameworkIDs []string, label string) (types.UnifiedRequirementSet, error) {
	runID := uuid.NewString()[:8]
	key := types.CacheKey(frameworkIDs, label)

	if cached, ok := o.cache.Get(key); ok {
		logging.OrchestratorDebug("[%s] cache hit for %q", runID, key)
		return cached, nil
	}

	timer := logging.StartTimer(logging.CategoryOrchestrator, "UnifyCategory "+label)
	defer timer.Stop()

	set, err := o.runPipeline(runID, frameworkIDs, label)
	if err != nil {
		return types.UnifiedRequirementSet{}, err
	}

	o.cache.Set(key, set)
	return set, nil
}

func (o *Orchestrator) runPipeline(runID string, frameworkIDs []string, label string) (types.UnifiedRequirementSet, error) {
	state := StateResolving
	logging.OrchestratorDebug("[%s] %s: label=%q frameworks=%v", runID, state, label, frameworkIDs)

	canonical, resolved := o.resolver.Resolve(label)
	categoryName := category.NormalizeLabel(label)
	if resolved {
		categoryName = canonical.Name
	}

	sources, err := o.requirements.LoadSourceRequirements(frameworkIDs, categoryName)
	if err != nil {
		return types.UnifiedRequirementSet{}, fmt.Errorf("loading source requirements for %q: %w", categoryName, err)
	}

	// EmptyCategory: non-fatal, fallback-only set with vacuous report
	if len(sources) == 0 {
		logging.Orchestrator("[%s] no sources for %q, using fallback", runID, categoryName)
		return o.fallback(runID, categoryName, resolved, nil), nil
	}

	if o.cfg.Mode == types.ModeTemplateOnly {
		return o.fallback(runID, categoryName, resolved, sources), nil
	}

	state = StateClustering
	logging.OrchestratorDebug("[%s] %s: %d sources", runID, state, len(sources))
	clusters := o.builder.Cluster(sources, o.cfg.SimilarityThreshold)

	state = StateHarmonizing
	logging.OrchestratorDebug("[%s] %s: %d clusters", runID, state, len(clusters))
	byID := make(map[string]types.SourceRequirement, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}
	subs := o.harmonizer.HarmonizeSet(clusters, byID)

	candidate := types.UnifiedRequirementSet{
		CategoryName:    categoryName,
		SubRequirements: subs,
		Mode:            types.ModeHarmonized,
	}

	state = StateValidating
	report := o.validator.Validate(candidate, sources, o.cfg)
	candidate.Quality = report

	if report.Passed {
		state = StateAccepted
		logging.Orchestrator("[%s] %s: %q harmonized into %d sub-requirements", runID, state, categoryName, len(subs))
		return candidate, nil
	}

	// QualityBelowThreshold: discard whole, never partial-accept
	state = StateFallingBack
	logging.Orchestrator("[%s] %s: %q failed quality gate (preservation=%.3f complexity=%.3f)",
		runID, state, categoryName, report.CompliancePreservationScore, report.ComplexityRatio)
	return o.fallback(runID, categoryName, resolved, sources), nil
}

// =============================================================================
// FALLBACK CHAIN
// =============================================================================

// fallback tries authored template content for a resolved canonical
// category, then generic synthesized content. It always returns a
// non-empty set.
func (o *Orchestrator) fallback(runID, categoryName string, resolved bool, sources []types.SourceRequirement) types.UnifiedRequirementSet {
	if resolved && o.templates != nil {
		lines, found, err := o.templates.LoadAuthoredTemplate(categoryName)
		if err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("[%s] template load failed for %q: %v", runID, categoryName, err)
		} else if found && len(lines) > 0 {
			set := o.authoredSet(categoryName, lines, sources)
			logging.Orchestrator("[%s] %q served from authored template (%d lines)", runID, categoryName, len(lines))
			return set
		}
	}

	set := o.genericSet(categoryName, sources)
	logging.Orchestrator("[%s] %q served from generic fallback", runID, categoryName)
	return set
}

func (o *Orchestrator) authoredSet(categoryName string, lines []string, sources []types.SourceRequirement) types.UnifiedRequirementSet {
	subs := make([]types.HarmonizedSubRequirement, 0, len(lines))
	for i, line := range lines {
		label := harmonize.OrdinalLabel(i)
		subs = append(subs, types.HarmonizedSubRequirement{
			OrdinalLabel: label,
			Text:         label + ") " + strings.TrimSpace(line),
		})
	}

	set := types.UnifiedRequirementSet{
		CategoryName:    categoryName,
		SubRequirements: subs,
		Mode:            types.ModeAuthoredTemplate,
	}
	set.Quality = o.validator.Validate(set, sources, o.cfg)
	return set
}

// genericSet synthesizes a single statement from the category name plus
// any available source provenance grouped by framework.
func (o *Orchestrator) genericSet(categoryName string, sources []types.SourceRequirement) types.UnifiedRequirementSet {
	text := fmt.Sprintf("a) Establish, implement, and maintain documented controls for %s.", strings.ToLower(categoryName))

	var provenance []types.ProvenanceRef
	if len(sources) > 0 {
		byFramework := make(map[string][]string)
		var frameworks []string
		for _, src := range sources {
			if len(byFramework[src.FrameworkID]) == 0 {
				frameworks = append(frameworks, src.FrameworkID)
			}
			byFramework[src.FrameworkID] = append(byFramework[src.FrameworkID], src.Code)
			provenance = append(provenance, src.Ref())
		}
		sort.Strings(frameworks)

		parts := make([]string, 0, len(frameworks))
		for _, fw := range frameworks {
			parts = append(parts, fmt.Sprintf("%s (%s)", fw, strings.Join(byFramework[fw], ", ")))
		}
		text += fmt.Sprintf(" This consolidates the obligations of %s.", strings.Join(parts, "; "))
	}

	set := types.UnifiedRequirementSet{
		CategoryName: categoryName,
		SubRequirements: []types.HarmonizedSubRequirement{{
			OrdinalLabel: "a",
			Text:         text,
			Provenance:   provenance,
		}},
		Mode: types.ModeGenericFallback,
	}
	set.Quality = o.validator.Validate(set, sources, o.cfg)
	return set
}

// =============================================================================
// BATCH PROCESSING
// =============================================================================

// UnifyAll runs the pipeline for many categories across a bounded worker
// pool. Category computations share nothing but the cache. The first
// collaborator I/O failure cancels the batch.
func (o *Orchestrator) UnifyAll(ctx context.Context, frameworkIDs []string, labels []string) (map[string]types.UnifiedRequirementSet, error) {
	results := make(map[string]types.UnifiedRequirementSet, len(labels))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, label := range labels {
		label := label
		g.Go(func() error {
			set, err := o.UnifyCategory(frameworkIDs, label)
			if err != nil {
				return err
			}
			mu.Lock()
			results[label] = set
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
