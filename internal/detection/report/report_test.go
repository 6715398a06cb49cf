package report_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/graph"
	"github.com/veilguard/doppel/internal/detection/report"
)

// rosterOf builds minimal member rows from creation instants.
func rosterOf(creations map[uint64]time.Time) map[uint64]*types.Member {
	members := make(map[uint64]*types.Member, len(creations))
	for id, created := range creations {
		members[id] = &types.Member{
			ID:        id,
			Username:  fmt.Sprintf("member%d", id),
			CreatedAt: created,
			JoinedAt:  created.Add(24 * time.Hour),
		}
	}

	return members
}

var reportTime = time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

func strongComponent(ids ...uint64) graph.Component {
	return graph.Component{
		MemberIDs: ids,
		Evidence: []string{
			fmt.Sprintf("Accounts share a creation time window of 10m0s (rapid creation pattern) [%d]", ids[0]),
			fmt.Sprintf("Username similarity: pair %d (95%% similar)", ids[0]),
		},
	}
}

func TestBuilderDropsWeakGroups(t *testing.T) {
	t.Parallel()

	anchor := reportTime.Add(-100 * 24 * time.Hour)
	creations := map[uint64]time.Time{
		1: anchor, 2: anchor.Add(10 * time.Minute),
		8: anchor, 9: anchor.AddDate(-2, 0, 0),
	}

	components := []graph.Component{
		strongComponent(1, 2),
		// A single neutral evidence line scores 15, below any sane threshold.
		{MemberIDs: []uint64{8, 9}, Evidence: []string{"neutral observation"}},
	}

	rep := report.NewBuilder(70, 10).Build(1, components, rosterOf(creations), report.Stats{}, false, reportTime)

	require.Len(t, rep.Groups, 1)
	assert.Equal(t, []uint64{1, 2}, rep.Groups[0].MemberIDs)
	assert.Equal(t, 90, rep.Groups[0].Confidence)
	assert.Equal(t, report.RiskCritical, rep.Groups[0].Risk)
	assert.Equal(t, 70, rep.Threshold)
	assert.Equal(t, 1, rep.TotalGroups)

	require.Len(t, rep.Groups[0].Members, 2)
	assert.Equal(t, "member1", rep.Groups[0].Members[0].Username)
	assert.Equal(t, 100, rep.Groups[0].Members[0].AccountAgeDays)
	assert.Equal(t, 99, rep.Groups[0].Members[0].TenureDays)
}

func TestRiskLabelBands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, report.RiskCritical, report.RiskLabel(90))
	assert.Equal(t, report.RiskHigh, report.RiskLabel(89))
	assert.Equal(t, report.RiskMedium, report.RiskLabel(75))
	assert.Equal(t, report.RiskLow, report.RiskLabel(69))
}

func TestBuilderOrdersByConfidenceThenSize(t *testing.T) {
	t.Parallel()

	anchor := reportTime.Add(-100 * 24 * time.Hour)
	creations := make(map[uint64]time.Time)
	for id := uint64(1); id <= 8; id++ {
		creations[id] = anchor.Add(time.Duration(id) * time.Minute)
	}

	components := []graph.Component{
		strongComponent(5, 6, 7, 8), // extra member points push this higher
		strongComponent(1, 2),
		strongComponent(3, 4),
	}

	rep := report.NewBuilder(70, 10).Build(1, components, rosterOf(creations), report.Stats{}, false, reportTime)

	require.Len(t, rep.Groups, 3)
	assert.Equal(t, []uint64{5, 6, 7, 8}, rep.Groups[0].MemberIDs)
	// Equal confidence pairs fall back to first member ID.
	assert.Equal(t, []uint64{1, 2}, rep.Groups[1].MemberIDs)
	assert.Equal(t, []uint64{3, 4}, rep.Groups[2].MemberIDs)
}

func TestBuilderAppliesReportLimit(t *testing.T) {
	t.Parallel()

	anchor := reportTime.Add(-100 * 24 * time.Hour)
	creations := make(map[uint64]time.Time)

	components := make([]graph.Component, 0, 12)
	for i := range 12 {
		a := uint64(i*2 + 1)
		b := uint64(i*2 + 2)
		creations[a] = anchor
		creations[b] = anchor.Add(5 * time.Minute)
		components = append(components, strongComponent(a, b))
	}

	rep := report.NewBuilder(70, 10).Build(1, components, rosterOf(creations), report.Stats{}, false, reportTime)

	assert.Len(t, rep.Groups, 10)
	assert.Equal(t, 12, rep.TotalGroups)
}

func TestBuilderCarriesDegradedFlagAndStats(t *testing.T) {
	t.Parallel()

	stats := report.Stats{MembersScanned: 240, BotsSkipped: 12, MembersSampled: 228}

	rep := report.NewBuilder(70, 10).Build(42, nil, nil, stats, true, reportTime)

	assert.True(t, rep.Degraded)
	assert.Equal(t, stats, rep.Stats)
	assert.Empty(t, rep.Groups)
	assert.Equal(t, uint64(42), rep.GuildID)
	assert.Equal(t, reportTime, rep.GeneratedAt)
}
