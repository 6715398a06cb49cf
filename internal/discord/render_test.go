package discord

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/report"
)

func TestRiskColorBands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, colorHighRisk, riskColor(95))
	assert.Equal(t, colorHighRisk, riskColor(90))
	assert.Equal(t, colorMediumRisk, riskColor(85))
	assert.Equal(t, colorLowRisk, riskColor(70))
}

func TestBuildReportEmbedWithGroups(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		GuildID:     42,
		GeneratedAt: time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC),
		Stats:       report.Stats{MembersScanned: 240, BotsSkipped: 12, MembersSampled: 100},
		Groups: []report.Group{
			{
				MemberIDs:  []uint64{1, 2},
				Confidence: 90,
				Risk:       report.RiskCritical,
				Evidence:   []string{"Username similarity: a ↔ b (95% similar)"},
			},
		},
		TotalGroups: 1,
	}

	embed := buildReportEmbed(rep)

	assert.Equal(t, colorHighRisk, embed.Color)
	require.NotEmpty(t, embed.Fields)
	assert.Contains(t, embed.Fields[0].Name, "90% confidence")
	assert.Contains(t, embed.Fields[0].Name, "critical")
	assert.Contains(t, embed.Fields[0].Value, "<@1>, <@2>")
	assert.Contains(t, embed.Fields[0].Value, "Username similarity")
}

func TestBuildReportEmbedEmpty(t *testing.T) {
	t.Parallel()

	rep := &report.Report{GuildID: 42, GeneratedAt: time.Now()}

	embed := buildReportEmbed(rep)

	assert.Equal(t, colorNeutral, embed.Color)
	assert.Contains(t, embed.Description, "No suspected alt-account groups")
}

func TestBuildReportEmbedDegraded(t *testing.T) {
	t.Parallel()

	rep := &report.Report{GuildID: 42, GeneratedAt: time.Now(), Degraded: true}

	embed := buildReportEmbed(rep)

	var found bool
	for _, field := range embed.Fields {
		if field.Name == "Partial results" {
			found = true
		}
	}

	assert.True(t, found)
}

func TestFormatGroupTruncatesLongEvidence(t *testing.T) {
	t.Parallel()

	evidence := make([]string, 40)
	for i := range evidence {
		evidence[i] = fmt.Sprintf("Behavioural pattern: matching message timing habits between pair %d (90.00%% similar)", i)
	}

	value := formatGroup(report.Group{
		MemberIDs:  []uint64{1, 2},
		Confidence: 90,
		Evidence:   evidence,
	}, false)

	assert.LessOrEqual(t, len(value), fieldValueLimit)
	assert.Contains(t, value, "and 35 more")
}

func TestFormatGroupDetailedShowsMemberSummaries(t *testing.T) {
	t.Parallel()

	value := formatGroup(report.Group{
		MemberIDs: []uint64{1, 2},
		Members: []report.MemberSummary{
			{ID: 1, Username: "shadowfox", AccountAgeDays: 3, TenureDays: 2},
			{ID: 2, Username: "shadowfox2", AccountAgeDays: 3, TenureDays: 1},
		},
		Confidence: 90,
		Evidence:   []string{"Username similarity: shadowfox ↔ shadowfox2 (95% similar)"},
	}, true)

	assert.Contains(t, value, "`shadowfox` — account 3 d old, member for 2 d")
	assert.Contains(t, value, "`shadowfox2`")
	assert.Contains(t, value, "Username similarity")
}

func TestBuildRecentReportsEmbed(t *testing.T) {
	t.Parallel()

	groups := []*types.AnalysisResult{
		{GuildID: 42, MemberIDs: []uint64{1, 2}, Confidence: 90, CreatedAt: time.Now()},
		{GuildID: 42, MemberIDs: []uint64{5, 6, 7}, Confidence: 75, CreatedAt: time.Now()},
	}

	embed := buildRecentReportsEmbed(groups, 7)

	assert.Equal(t, colorHighRisk, embed.Color)
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[1].Value, "<@5>, <@6>, <@7>")

	empty := buildRecentReportsEmbed(nil, 3)
	assert.Contains(t, empty.Description, "last 3 day(s)")
}
