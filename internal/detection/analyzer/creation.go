package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
)

const (
	// creationBucket is the coarse window members are grouped into before
	// pairwise comparison, bounding the quadratic scan.
	creationBucket = 6 * time.Hour
	// rapidCreationThreshold is the maximum creation gap for a rapid cluster.
	rapidCreationThreshold = 30 * time.Minute
	// burstCreationThreshold is the maximum span for a three-account burst.
	burstCreationThreshold = 2 * time.Hour
)

// CreationAnalyzer flags members whose accounts were created in suspiciously
// tight succession. Mass-created alt accounts tend to share a creation window.
type CreationAnalyzer struct{}

// Name returns the analyzer's tag.
func (*CreationAnalyzer) Name() string { return TagCreation }

// Analyze buckets members into 6-hour creation windows, then looks for rapid
// clusters (within 30 minutes) and three-account bursts (within 2 hours).
func (*CreationAnalyzer) Analyze(s *Snapshot) []Edge {
	humans := s.Humans()
	if len(humans) < 2 {
		return nil
	}

	buckets := make(map[time.Time][]*types.Member)

	for _, member := range humans {
		created := member.CreatedAt.UTC()
		window := time.Date(
			created.Year(), created.Month(), created.Day(),
			(created.Hour()/6)*6, 0, 0, 0, time.UTC,
		)
		buckets[window] = append(buckets[window], member)
	}

	// Deterministic bucket traversal.
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
			if group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].ID < group[j].ID
			}

			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})

		edges = append(edges, rapidCreationEdges(group)...)
		edges = append(edges, burstCreationEdges(group)...)
	}

	return edges
}

// rapidCreationEdges emits one edge per member whose creation instant is
// within 30 minutes of at least one other member in the bucket.
func rapidCreationEdges(group []*types.Member) []Edge {
	var edges []Edge

	for i, member := range group {
		cluster := []*types.Member{member}

		for j, other := range group {
			if i == j {
				continue
			}

			if absDuration(member.CreatedAt.Sub(other.CreatedAt)) <= rapidCreationThreshold {
				cluster = append(cluster, other)
			}
		}

		if len(cluster) < 2 {
			continue
		}

		span := creationSpan(cluster)
		edges = append(edges, Edge{
			Analyzer:  TagCreation,
			MemberIDs: memberIDs(cluster),
			Evidence:  fmt.Sprintf("Accounts share a creation time window of %s (rapid creation pattern)", span),
			Details: map[string]any{
				"creation_window": span.String(),
				"threshold_type":  "rapid",
				"account_count":   len(cluster),
			},
		})
	}

	return edges
}

// burstCreationEdges scans consecutive creation-time triples and emits an
// edge when three accounts were created within the burst threshold.
func burstCreationEdges(group []*types.Member) []Edge {
	if len(group) < 3 {
		return nil
	}

	var edges []Edge

	for k := 0; k+2 < len(group); k++ {
		span := group[k+2].CreatedAt.Sub(group[k].CreatedAt)
		if span > burstCreationThreshold {
			continue
		}

		triple := group[k : k+3]
		edges = append(edges, Edge{
			Analyzer:  TagCreation,
			MemberIDs: memberIDs(triple),
			Evidence:  fmt.Sprintf("Creation time burst: 3+ accounts within %s", span),
			Details: map[string]any{
				"creation_window": span.String(),
				"threshold_type":  "burst",
				"account_count":   3,
			},
		})
	}

	return edges
}

// creationSpan returns the widest pairwise creation gap within the cluster.
func creationSpan(cluster []*types.Member) time.Duration {
	var span time.Duration

	for i := range cluster {
		for j := i + 1; j < len(cluster); j++ {
			if gap := absDuration(cluster[i].CreatedAt.Sub(cluster[j].CreatedAt)); gap > span {
				span = gap
			}
		}
	}

	return span
}

func memberIDs(members []*types.Member) []uint64 {
	ids := make([]uint64, len(members))
	for i, member := range members {
		ids[i] = member.ID
	}

	return ids
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
