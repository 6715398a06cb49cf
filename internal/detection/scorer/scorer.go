// Package scorer turns an evidence component into a 0–100 confidence score.
package scorer

import (
	"strings"
	"time"

	"github.com/veilguard/doppel/internal/detection/graph"
)

const (
	// evidencePoints is awarded per distinct evidence line.
	evidencePoints = 15
	// evidenceCap bounds the evidence contribution.
	evidenceCap = 60
	// sizePoints is awarded per member beyond the second.
	sizePoints = 10
	// sizeCap bounds the group-size contribution.
	sizeCap = 30
)

// keywordBonuses reward components whose evidence spans the stronger
// signal categories. Matching is case-insensitive substring search.
var keywordBonuses = []struct {
	keyword string
	bonus   int
}{
	{"creation time", 20},
	{"username similarity", 15},
	{"join pattern", 10},
	{"behavioural pattern", 15},
	{"activity correlation", 10},
}

// Scorer computes confidence scores from evidence components. It is
// stateless; the zero value is ready for use.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer { return &Scorer{} }

// Score computes the component's confidence. creationTimes maps member IDs
// to account creation instants; members missing from the map are excluded
// from the proximity bonus.
func (sc *Scorer) Score(component graph.Component, creationTimes map[uint64]time.Time) int {
	score := min(len(component.Evidence)*evidencePoints, evidenceCap)
	score += min(max(0, len(component.MemberIDs)-2)*sizePoints, sizeCap)
	score += keywordBonus(component.Evidence)
	score += creationProximityBonus(component.MemberIDs, creationTimes)

	return min(max(score, 0), 100)
}

// keywordBonus awards each category at most once no matter how many
// evidence lines mention it.
func keywordBonus(evidence []string) int {
	joined := strings.ToLower(strings.Join(evidence, "\n"))

	var bonus int

	for _, kb := range keywordBonuses {
		if strings.Contains(joined, kb.keyword) {
			bonus += kb.bonus
		}
	}

	return bonus
}

// creationProximityBonus rewards groups whose accounts were created close
// together, using the mean pairwise creation gap.
func creationProximityBonus(memberIDs []uint64, creationTimes map[uint64]time.Time) int {
	var instants []time.Time

	for _, id := range memberIDs {
		if created, ok := creationTimes[id]; ok {
			instants = append(instants, created)
		}
	}

	if len(instants) < 2 {
		return 0
	}

	var total time.Duration
	var pairs int

	for i := range instants {
		for j := i + 1; j < len(instants); j++ {
			gap := instants[i].Sub(instants[j])
			if gap < 0 {
				gap = -gap
			}

			total += gap
			pairs++
		}
	}

	mean := total / time.Duration(pairs)

	switch {
	case mean < 24*time.Hour:
		return 25
	case mean < 7*24*time.Hour:
		return 15
	case mean < 30*24*time.Hour:
		return 10
	default:
		return 0
	}
}
