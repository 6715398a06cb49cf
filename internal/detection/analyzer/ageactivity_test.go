package analyzer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/analyzer"
)

// newAgedMember builds an active member with the given account age in days
// and 30-day message count.
func newAgedMember(id uint64, ageDays int, msgs30d int) *types.Member {
	m := newMember(
		id, "user",
		scanTime.Add(-time.Duration(ageDays)*24*time.Hour),
		scanTime.Add(-10*24*time.Hour),
	)
	m.MessageCount30d = msgs30d
	m.MessageCount7d = msgs30d / 4

	return m
}

func TestAgeActivityAnalyzerCorrelatedPair(t *testing.T) {
	t.Parallel()

	// Both 12 days old with 2.0 messages/day over a 10-day tenure.
	s := newSnapshot(
		newAgedMember(1, 12, 20),
		newAgedMember(2, 12, 20),
	)

	edges := (&analyzer.AgeActivityAnalyzer{}).Analyze(s)
	require.Len(t, edges, 1)

	assert.Equal(t, analyzer.TagAgeActivity, edges[0].Analyzer)
	assert.ElementsMatch(t, []uint64{1, 2}, edges[0].MemberIDs)
	assert.Contains(t, edges[0].Evidence, "Activity correlation")
}

func TestAgeActivityAnalyzerRateGap(t *testing.T) {
	t.Parallel()

	// Same age, but 2.0 vs 8.0 messages/day.
	s := newSnapshot(
		newAgedMember(1, 12, 20),
		newAgedMember(2, 12, 80),
	)

	assert.Empty(t, (&analyzer.AgeActivityAnalyzer{}).Analyze(s))
}

func TestAgeActivityAnalyzerAgeGap(t *testing.T) {
	t.Parallel()

	// Matching rates but a three-year age gap.
	s := newSnapshot(
		newAgedMember(1, 12, 20),
		newAgedMember(2, 1100, 20),
	)

	assert.Empty(t, (&analyzer.AgeActivityAnalyzer{}).Analyze(s))
}

func TestAgeActivityAnalyzerBucketBoundary(t *testing.T) {
	t.Parallel()

	// Ages 6 and 8 days straddle the week boundary but differ by only two
	// days; the pair is reported exactly once.
	s := newSnapshot(
		newAgedMember(1, 6, 20),
		newAgedMember(2, 8, 20),
	)

	edges := (&analyzer.AgeActivityAnalyzer{}).Analyze(s)
	require.Len(t, edges, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, edges[0].MemberIDs)
}
