package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
)

const (
	// joinBucketWindow groups joins into coarse windows before the precise
	// pairwise pass runs inside each bucket.
	joinBucketWindow = time.Hour
	// rapidJoinWindow is the maximum spread for a coordinated join set.
	rapidJoinWindow = 15 * time.Minute
)

// JoinAnalyzer flags members who joined the guild within minutes of each
// other, which is typical for one operator cycling through accounts.
type JoinAnalyzer struct{}

// Name returns the analyzer's tag.
func (*JoinAnalyzer) Name() string { return TagJoin }

// Analyze buckets non-bot members by join hour and flags sets of two or more
// whose joins fall within the rapid window.
func (*JoinAnalyzer) Analyze(s *Snapshot) []Edge {
	humans := s.Humans()
	if len(humans) < 2 {
		return nil
	}

	buckets := make(map[time.Time][]*types.Member)

	for _, member := range humans {
		bucket := member.JoinedAt.UTC().Truncate(joinBucketWindow)
		buckets[bucket] = append(buckets[bucket], member)
	}

	windows := make([]time.Time, 0, len(buckets))
	for window := range buckets {
		windows = append(windows, window)
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Before(windows[j]) })

	var edges []Edge

	for _, window := range windows {
		group := buckets[window]
		if len(group) < 2 {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			if !group[i].JoinedAt.Equal(group[j].JoinedAt) {
				return group[i].JoinedAt.Before(group[j].JoinedAt)
			}
			return group[i].ID < group[j].ID
		})

		edges = append(edges, rapidJoinEdges(group)...)
	}

	return edges
}

// rapidJoinEdges emits one edge per member whose join is matched by at least
// one other join inside the rapid window.
func rapidJoinEdges(group []*types.Member) []Edge {
	var edges []Edge

	for i, member := range group {
		cluster := []*types.Member{member}

		for j, other := range group {
			if i == j {
				continue
			}

			if absDuration(member.JoinedAt.Sub(other.JoinedAt)) <= rapidJoinWindow {
				cluster = append(cluster, other)
			}
		}

		if len(cluster) < 2 {
			continue
		}

		span := joinSpan(cluster)

		edges = append(edges, Edge{
			Analyzer:  TagJoin,
			MemberIDs: memberIDs(cluster),
			Evidence:  fmt.Sprintf("Accounts joined within %s of each other (coordinated join pattern)", span),
			Details: map[string]any{
				"join_window":   span.String(),
				"account_count": len(cluster),
			},
		})
	}

	return edges
}

// joinSpan returns the widest pairwise gap between joins in the cluster.
func joinSpan(cluster []*types.Member) time.Duration {
	var span time.Duration

	for i := range cluster {
		for j := i + 1; j < len(cluster); j++ {
			if gap := absDuration(cluster[i].JoinedAt.Sub(cluster[j].JoinedAt)); gap > span {
				span = gap
			}
		}
	}

	return span
}
