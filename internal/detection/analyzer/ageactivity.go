package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/veilguard/doppel/internal/database/types"
)

const (
	// ageBucketDays groups accounts into week-wide age cohorts.
	ageBucketDays = 7
	// maxActivityRateDelta is the largest per-day message rate gap for two
	// same-age accounts to be considered correlated.
	maxActivityRateDelta = 0.5
)

// AgeActivityAnalyzer flags accounts of near-identical age with
// near-identical activity rates. Alts spun up together tend to be used
// together, so their tenure and throughput move in lockstep.
type AgeActivityAnalyzer struct{}

// Name returns the analyzer's tag.
func (*AgeActivityAnalyzer) Name() string { return TagAgeActivity }

// Analyze buckets active members into week-wide age cohorts and compares the
// activity rate of every pair within and across adjacent cohorts.
func (*AgeActivityAnalyzer) Analyze(s *Snapshot) []Edge {
	active := s.ActiveHumans()
	if len(active) < 2 {
		return nil
	}

	buckets := make(map[int][]*types.Member)

	for _, member := range active {
		bucket := member.AccountAgeDays(s.Now) / ageBucketDays
		buckets[bucket] = append(buckets[bucket], member)
	}

	cohorts := make([]int, 0, len(buckets))
	for cohort := range buckets {
		cohorts = append(cohorts, cohort)
	}

	sort.Ints(cohorts)

	var edges []Edge

	for _, cohort := range cohorts {
		// Accounts a few days apart can straddle a bucket boundary, so each
		// cohort is compared against itself and its successor.
		group := buckets[cohort]
		group = append(group, buckets[cohort+1]...)

		edges = append(edges, cohortEdges(group, s, cohort)...)
	}

	return edges
}

// cohortEdges emits an edge for every pair in the cohort whose age and
// activity rate both fall within the correlation limits.
func cohortEdges(group []*types.Member, s *Snapshot, cohort int) []Edge {
	var edges []Edge

	for i := range group {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]

			ageDelta := math.Abs(float64(a.AccountAgeDays(s.Now) - b.AccountAgeDays(s.Now)))
			rateDelta := math.Abs(a.ActivityPerDay(s.Now) - b.ActivityPerDay(s.Now))

			if ageDelta > ageBucketDays || rateDelta >= maxActivityRateDelta {
				continue
			}

			// Cross-bucket pairs appear in both the cohort and its
			// predecessor's pass; only the pair's home cohort emits.
			if min(a.AccountAgeDays(s.Now), b.AccountAgeDays(s.Now))/ageBucketDays != cohort {
				continue
			}

			correlation := 1 - (ageDelta/ageBucketDays*0.3 + rateDelta*0.4)

			edges = append(edges, Edge{
				Analyzer:  TagAgeActivity,
				MemberIDs: []uint64{a.ID, b.ID},
				Evidence: fmt.Sprintf("Activity correlation with account age: %d-day-old accounts with matching activity rates (%.2f correlation)",
					min(a.AccountAgeDays(s.Now), b.AccountAgeDays(s.Now)), correlation),
				Details: map[string]any{
					"age_delta_days":      ageDelta,
					"activity_rate_delta": rateDelta,
					"correlation":         correlation,
				},
			})
		}
	}

	return edges
}
