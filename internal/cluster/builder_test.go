package cluster

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"harmonia/internal/similarity"
	"harmonia/internal/types"
)

func req(id, fw, code, text string) types.SourceRequirement {
	return types.SourceRequirement{ID: id, FrameworkID: fw, Code: code, Text: text}
}

func TestCluster_NearDuplicatesMerge(t *testing.T) {
	b := NewBuilder(similarity.NewScorer())
	statements := []types.SourceRequirement{
		req("r1", "iso27001", "16.1", "Report security incidents to management within 72 hours of detection."),
		req("r2", "gdpr", "33", "Security incidents shall be reported to management within 72 hours after detection."),
		req("r3", "nis2", "21", "Maintain offsite backups of critical data and test restores quarterly."),
	}

	clusters := b.Cluster(statements, 0.75)
	if len(clusters) != 2 {
		t.Fatalf("Cluster() produced %d clusters, want 2", len(clusters))
	}

	// gdpr sorts before iso27001, so r2 seeds the first cluster
	if got, want := clusters[0].Members, []string{"r2", "r1"}; !cmp.Equal(got, want) {
		t.Fatalf("clusters[0].Members = %v, want %v", got, want)
	}
	if got, want := clusters[1].Members, []string{"r3"}; !cmp.Equal(got, want) {
		t.Fatalf("clusters[1].Members = %v, want %v", got, want)
	}

	if len(clusters[0].Scores) != 1 {
		t.Fatalf("clusters[0].Scores has %d entries, want 1", len(clusters[0].Scores))
	}
	if s := clusters[0].Scores[0]; s.Score < 0.75 {
		t.Fatalf("recorded membership score %v below threshold", s.Score)
	}
}

func TestCluster_Deterministic(t *testing.T) {
	b := NewBuilder(similarity.NewScorer())
	statements := []types.SourceRequirement{
		req("r3", "nis2", "21", "Maintain offsite backups of critical data and test restores quarterly."),
		req("r1", "iso27001", "16.1", "Report security incidents to management within 72 hours of detection."),
		req("r2", "gdpr", "33", "Security incidents shall be reported to management within 72 hours after detection."),
	}

	first := b.Cluster(statements, 0.75)

	// Shuffle input order; output must be identical
	shuffled := []types.SourceRequirement{statements[2], statements[0], statements[1]}
	second := b.Cluster(shuffled, 0.75)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("clustering not deterministic across input orders (-first +second):\n%s", diff)
	}
}

func TestCluster_SingletonInput(t *testing.T) {
	b := NewBuilder(similarity.NewScorer())
	clusters := b.Cluster([]types.SourceRequirement{
		req("r1", "iso27001", "5.3", "Segregate conflicting duties."),
	}, 0.75)

	if len(clusters) != 1 || len(clusters[0].Members) != 1 {
		t.Fatalf("Cluster() = %+v, want single singleton cluster", clusters)
	}
}

func TestCluster_EmptyInput(t *testing.T) {
	b := NewBuilder(similarity.NewScorer())
	if clusters := b.Cluster(nil, 0.75); clusters != nil {
		t.Fatalf("Cluster(nil) = %+v, want nil", clusters)
	}
}

func TestCluster_ThresholdOneKeepsAllSeparate(t *testing.T) {
	b := NewBuilder(similarity.NewScorer())
	statements := []types.SourceRequirement{
		req("r1", "iso27001", "16.1", "Report incidents within 72 hours."),
		req("r2", "gdpr", "33", "Report incidents promptly to the supervisory authority."),
	}

	clusters := b.Cluster(statements, 1.01)
	if len(clusters) != 2 {
		t.Fatalf("Cluster() at threshold > 1 produced %d clusters, want 2", len(clusters))
	}
}
