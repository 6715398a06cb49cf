package analyzer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/detection/analyzer"
)

func TestUsernameAnalyzerDigitSuffix(t *testing.T) {
	t.Parallel()

	created := scanTime.Add(-400 * 24 * time.Hour)
	joined := scanTime.Add(-30 * 24 * time.Hour)

	s := newSnapshot(
		newMember(1, "shadowfox", created, joined),
		newMember(2, "shadowfox2", created.Add(90*24*time.Hour), joined),
		newMember(3, "completely_other", created.Add(200*24*time.Hour), joined),
	)

	edges := (&analyzer.UsernameAnalyzer{}).Analyze(s)
	require.NotEmpty(t, edges)

	var pairEdge *analyzer.Edge
	for i := range edges {
		if edges[i].Details["pattern_type"] == nil && len(edges[i].MemberIDs) == 2 {
			pairEdge = &edges[i]
			break
		}
	}

	require.NotNil(t, pairEdge)
	assert.ElementsMatch(t, []uint64{1, 2}, pairEdge.MemberIDs)
	assert.Contains(t, pairEdge.Evidence, "Username similarity")
	assert.Equal(t, 95, pairEdge.Details["pattern_similarity"])
}

func TestUsernameAnalyzerLeetSpeak(t *testing.T) {
	t.Parallel()

	created := scanTime.Add(-400 * 24 * time.Hour)
	joined := scanTime.Add(-30 * 24 * time.Hour)

	s := newSnapshot(
		newMember(1, "noobmaster", created, joined),
		newMember(2, "n00bm4ster", created.Add(90*24*time.Hour), joined),
	)

	edges := (&analyzer.UsernameAnalyzer{}).Analyze(s)
	require.NotEmpty(t, edges)
	assert.Contains(t, edges[0].Evidence, "Username similarity")
}

func TestUsernameAnalyzerNamingFamily(t *testing.T) {
	t.Parallel()

	created := scanTime.Add(-400 * 24 * time.Hour)
	joined := scanTime.Add(-30 * 24 * time.Hour)

	s := newSnapshot(
		newMember(1, "raven1", created, joined),
		newMember(2, "raven2", created.Add(10*24*time.Hour), joined),
		newMember(3, "ravenalt", created.Add(20*24*time.Hour), joined),
	)

	edges := (&analyzer.UsernameAnalyzer{}).Analyze(s)

	var family *analyzer.Edge
	for i := range edges {
		if edges[i].Details["pattern_type"] == "naming_convention" {
			family = &edges[i]
			break
		}
	}

	require.NotNil(t, family)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, family.MemberIDs)
	assert.Contains(t, family.Evidence, "Common naming pattern")
	assert.Equal(t, "raven", family.Details["base_pattern"])
}

func TestUsernameAnalyzerDisplayNames(t *testing.T) {
	t.Parallel()

	created := scanTime.Add(-400 * 24 * time.Hour)
	joined := scanTime.Add(-30 * 24 * time.Hour)

	a := newMember(1, "xk92ja", created, joined)
	a.DisplayName = "Night Raven"
	b := newMember(2, "qp31mm", created.Add(90*24*time.Hour), joined)
	b.DisplayName = "Night Ravenn"

	// A display name identical to the handle is not compared.
	c := newMember(3, "night raven", created.Add(10*24*time.Hour), joined)
	c.DisplayName = "night raven"

	edges := (&analyzer.UsernameAnalyzer{}).Analyze(newSnapshot(a, b, c))

	var display []analyzer.Edge
	for _, edge := range edges {
		if edge.Details["pattern_type"] == nil && len(edge.MemberIDs) == 2 {
			display = append(display, edge)
		}
	}

	require.Len(t, display, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, display[0].MemberIDs)
	assert.Contains(t, display[0].Evidence, "Display name similarity")
}

func TestUsernameAnalyzerUnrelatedNames(t *testing.T) {
	t.Parallel()

	created := scanTime.Add(-400 * 24 * time.Hour)
	joined := scanTime.Add(-30 * 24 * time.Hour)

	s := newSnapshot(
		newMember(1, "alpha", created, joined),
		newMember(2, "zymurgy", created.Add(90*24*time.Hour), joined),
	)

	assert.Empty(t, (&analyzer.UsernameAnalyzer{}).Analyze(s))
}
