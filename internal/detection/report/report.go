// Package report assembles the final scan report from scored evidence
// components.
package report

import (
	"sort"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/graph"
	"github.com/veilguard/doppel/internal/detection/scorer"
)

// Risk labels by confidence band.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// RiskLabel maps a confidence score onto its risk band.
func RiskLabel(confidence int) string {
	switch {
	case confidence >= 90:
		return RiskCritical
	case confidence >= 80:
		return RiskHigh
	case confidence >= 70:
		return RiskMedium
	default:
		return RiskLow
	}
}

// MemberSummary is the per-member detail attached to a reported group.
type MemberSummary struct {
	ID             uint64 `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	AccountAgeDays int    `json:"account_age_days"`
	TenureDays     int    `json:"tenure_days"`
}

// Group is one suspected alt-account group in a report.
type Group struct {
	MemberIDs  []uint64        `json:"member_ids"`
	Members    []MemberSummary `json:"members"`
	Confidence int             `json:"confidence"`
	Risk       string          `json:"risk"`
	Evidence   []string        `json:"evidence"`
}

// Stats summarises the scan run the report came from.
type Stats struct {
	MembersScanned int
	BotsSkipped    int
	MembersSampled int
	Elapsed        time.Duration
}

// Report is the outcome of one guild scan.
type Report struct {
	GuildID     uint64
	GeneratedAt time.Time
	// Threshold is the confidence cut-off this report was built with.
	Threshold int
	Stats     Stats
	// Groups at or above the confidence threshold, highest first, capped
	// at the configured report limit.
	Groups []Group
	// TotalGroups counts every group that met the threshold, including
	// those cut by the report limit.
	TotalGroups int
	// Degraded is set when parts of the guild could not be fetched or
	// sampled, so the report may be incomplete.
	Degraded bool
	// Detailed asks renderers to include per-member summaries.
	Detailed bool
}

// Builder filters, scores and orders components into reports.
type Builder struct {
	scorer    *scorer.Scorer
	threshold int
	limit     int
}

// NewBuilder returns a Builder flagging groups at or above threshold and
// reporting at most limit groups.
func NewBuilder(threshold, limit int) *Builder {
	return &Builder{
		scorer:    scorer.New(),
		threshold: threshold,
		limit:     limit,
	}
}

// Build scores every component and assembles the report. Components scoring
// zero or below the threshold are dropped. Ordering is confidence
// descending, then smaller groups first, then by first member ID, so equal
// inputs always produce an identical report.
func (b *Builder) Build(
	guildID uint64, components []graph.Component,
	members map[uint64]*types.Member, stats Stats, degraded bool, now time.Time,
) *Report {
	creations := make(map[uint64]time.Time, len(members))
	for id, member := range members {
		creations[id] = member.CreatedAt
	}

	groups := make([]Group, 0, len(components))

	for _, component := range components {
		confidence := b.scorer.Score(component, creations)
		if confidence == 0 || confidence < b.threshold {
			continue
		}

		groups = append(groups, Group{
			MemberIDs:  component.MemberIDs,
			Members:    summarise(component.MemberIDs, members, now),
			Confidence: confidence,
			Risk:       RiskLabel(confidence),
			Evidence:   component.Evidence,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Confidence != groups[j].Confidence {
			return groups[i].Confidence > groups[j].Confidence
		}

		if len(groups[i].MemberIDs) != len(groups[j].MemberIDs) {
			return len(groups[i].MemberIDs) < len(groups[j].MemberIDs)
		}

		return groups[i].MemberIDs[0] < groups[j].MemberIDs[0]
	})

	total := len(groups)
	if b.limit > 0 && len(groups) > b.limit {
		groups = groups[:b.limit]
	}

	return &Report{
		GuildID:     guildID,
		GeneratedAt: now,
		Threshold:   b.threshold,
		Stats:       stats,
		Groups:      groups,
		TotalGroups: total,
		Degraded:    degraded,
	}
}

// summarise builds the per-member details for one group. Members missing
// from the roster map keep only their ID.
func summarise(ids []uint64, members map[uint64]*types.Member, now time.Time) []MemberSummary {
	summaries := make([]MemberSummary, 0, len(ids))

	for _, id := range ids {
		summary := MemberSummary{ID: id}

		if member, ok := members[id]; ok {
			summary.Username = member.Username
			summary.DisplayName = member.DisplayName
			summary.AccountAgeDays = member.AccountAgeDays(now)
			summary.TenureDays = member.TenureDays(now)
		}

		summaries = append(summaries, summary)
	}

	return summaries
}
