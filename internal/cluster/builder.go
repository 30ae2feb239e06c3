// Package cluster groups a category's source statements into equivalence
// clusters using pairwise similarity scores.
//
// The algorithm is greedy single-linkage-to-first-match rather than full
// hierarchical clustering: statements are processed in a fixed order and
// each joins the first existing cluster whose representative scores at or
// above the threshold. O(n*k) for k clusters, which is fine for one
// category's working set (tens to low hundreds of statements), and the
// determinism is itself a tested property.
package cluster

import (
	"sort"

	"harmonia/internal/logging"
	"harmonia/internal/similarity"
	"harmonia/internal/types"
)

// Builder partitions statements into semantic clusters.
type Builder struct {
	scorer *similarity.Scorer
}

// NewBuilder returns a Builder using the given scorer.
func NewBuilder(scorer *similarity.Scorer) *Builder {
	return &Builder{scorer: scorer}
}

// Cluster partitions statements into clusters at the given similarity
// threshold. Output order is reproducible: input is sorted by frameworkID
// then code before processing, and clusters are emitted in creation
// order. A lone statement yields a singleton cluster.
func (b *Builder) Cluster(statements []types.SourceRequirement, threshold float64) []types.SemanticCluster {
	timer := logging.StartTimer(logging.CategoryCluster, "Cluster")
	defer timer.Stop()

	if len(statements) == 0 {
		return nil
	}

	// Fixed deterministic processing order
	ordered := make([]types.SourceRequirement, len(statements))
	copy(ordered, statements)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].FrameworkID != ordered[j].FrameworkID {
			return ordered[i].FrameworkID < ordered[j].FrameworkID
		}
		return ordered[i].Code < ordered[j].Code
	})

	byID := make(map[string]types.SourceRequirement, len(ordered))
	for _, st := range ordered {
		byID[st.ID] = st
	}

	var clusters []types.SemanticCluster
	for _, st := range ordered {
		joined := false
		for i := range clusters {
			rep := byID[clusters[i].Representative()]
			score := b.scorer.Score(rep, st)
			if score >= threshold {
				clusters[i].Members = append(clusters[i].Members, st.ID)
				clusters[i].Scores = append(clusters[i].Scores, types.SimilarityEntry{
					AID: rep.ID, BID: st.ID, Score: score,
				})
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, types.SemanticCluster{Members: []string{st.ID}})
		}
	}

	logging.ClusterDebug("clustered %d statements into %d clusters at threshold %.2f",
		len(ordered), len(clusters), threshold)
	return clusters
}
