// Package analyzer implements the heuristic analyses that propose
// alt-account relationships between guild members. Every analyzer is a pure
// function over a frozen snapshot; outputs are independent and commutative.
package analyzer

import (
	"time"

	"github.com/veilguard/doppel/internal/database/types"
)

// Analyzer tags, used as pattern cache keys and detail map keys.
const (
	TagCreation    = "creation"
	TagUsername    = "username"
	TagJoin        = "join"
	TagBehavioural = "behavioural"
	TagAgeActivity = "age_activity"
)

// Snapshot is the frozen view of one guild's members and sampled activity
// that all analyzers see for a single run. Members are ordered by account
// creation time ascending. Analyzers must not mutate it.
type Snapshot struct {
	GuildID uint64
	Members []*types.Member
	// Sampled message timestamps keyed by member ID, ascending.
	Timings map[uint64][]time.Time
	// The instant the snapshot was taken; analyzers use this instead of
	// time.Now so identical snapshots produce identical output.
	Now time.Time
}

// Humans returns the non-bot members in snapshot order.
func (s *Snapshot) Humans() []*types.Member {
	humans := make([]*types.Member, 0, len(s.Members))

	for _, member := range s.Members {
		if !member.IsBot {
			humans = append(humans, member)
		}
	}

	return humans
}

// ActiveHumans returns non-bot members with at least one sampled message.
func (s *Snapshot) ActiveHumans() []*types.Member {
	active := make([]*types.Member, 0, len(s.Members))

	for _, member := range s.Members {
		if !member.IsBot && member.HasActivity() {
			active = append(active, member)
		}
	}

	return active
}

// Edge is an analyzer's atomic output: a small set of member IDs that the
// analyzer believes are related, with a human-readable evidence string and a
// structured detail map that later stages treat as opaque.
type Edge struct {
	Analyzer  string         `json:"analyzer"`
	MemberIDs []uint64       `json:"member_ids"`
	Evidence  string         `json:"evidence"`
	Details   map[string]any `json:"details"`
}

// Analyzer is a single detection heuristic.
type Analyzer interface {
	// Name returns the analyzer's tag.
	Name() string
	// Analyze inspects the snapshot and returns proposed edges.
	Analyze(s *Snapshot) []Edge
}

// All returns the fixed analyzer sequence used by the scanner. Order only
// affects log output; the evidence graph is order-independent.
func All() []Analyzer {
	return []Analyzer{
		&CreationAnalyzer{},
		&UsernameAnalyzer{},
		&JoinAnalyzer{},
		&BehaviouralAnalyzer{},
		&AgeActivityAnalyzer{},
	}
}
