package graph_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/detection/analyzer"
	"github.com/veilguard/doppel/internal/detection/graph"
)

func edge(tag, evidence string, ids ...uint64) analyzer.Edge {
	return analyzer.Edge{
		Analyzer:  tag,
		MemberIDs: ids,
		Evidence:  evidence,
		Details:   map[string]any{"source": tag},
	}
}

func TestGraphTransitiveMerge(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge(edge(analyzer.TagUsername, "Username similarity: a ↔ b", 1, 2))
	g.AddEdge(edge(analyzer.TagCreation, "Accounts share a creation time window", 2, 3))

	components := g.Components()
	require.Len(t, components, 1)

	assert.Equal(t, []uint64{1, 2, 3}, components[0].MemberIDs)
	assert.Len(t, components[0].Evidence, 2)
}

func TestGraphDisjointComponents(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge(edge(analyzer.TagJoin, "joined together", 1, 2))
	g.AddEdge(edge(analyzer.TagJoin, "joined together too", 7, 9))

	components := g.Components()
	require.Len(t, components, 2)

	// Ordered by smallest member ID.
	assert.Equal(t, []uint64{1, 2}, components[0].MemberIDs)
	assert.Equal(t, []uint64{7, 9}, components[1].MemberIDs)
}

func TestGraphEvidenceDeduplicated(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge(edge(analyzer.TagCreation, "same window", 1, 2))
	g.AddEdge(edge(analyzer.TagCreation, "same window", 2, 1))
	g.AddEdge(edge(analyzer.TagJoin, "same join", 1, 2))

	components := g.Components()
	require.Len(t, components, 1)
	assert.Equal(t, []string{"same join", "same window"}, components[0].Evidence)
}

func TestGraphIgnoresDegenerateEdges(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge(edge(analyzer.TagUsername, "solo", 1))
	g.AddEdge(analyzer.Edge{Analyzer: analyzer.TagUsername, Evidence: "empty"})

	assert.Zero(t, g.Len())
	assert.Empty(t, g.Components())
}

func TestGraphInsertionOrderIrrelevant(t *testing.T) {
	t.Parallel()

	edges := []analyzer.Edge{
		edge(analyzer.TagCreation, "creation cluster", 1, 2, 3),
		edge(analyzer.TagUsername, "handle pair", 3, 4),
		edge(analyzer.TagJoin, "join pair", 10, 11),
		edge(analyzer.TagBehavioural, "behaviour pair", 2, 4),
		edge(analyzer.TagAgeActivity, "age pair", 11, 12),
	}

	reference := graph.New()
	reference.AddEdges(edges)
	want := reference.Components()

	rng := rand.New(rand.NewSource(42))

	for range 10 {
		shuffled := make([]analyzer.Edge, len(edges))
		copy(shuffled, edges)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		g := graph.New()
		g.AddEdges(shuffled)

		assert.Equal(t, want, g.Components())
	}
}

func TestGraphDetailsKeyedByAnalyzer(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge(edge(analyzer.TagCreation, "creation", 1, 2))
	g.AddEdge(edge(analyzer.TagUsername, "username", 1, 2))

	components := g.Components()
	require.Len(t, components, 1)

	assert.Contains(t, components[0].Details, analyzer.TagCreation)
	assert.Contains(t, components[0].Details, analyzer.TagUsername)
}
