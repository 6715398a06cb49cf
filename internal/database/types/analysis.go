package types

import (
	"time"

	"github.com/uptrace/bun"
)

// AnalysisResult is one stored candidate group with its confidence score.
// Rows are append-only; the purge worker removes rows older than 30 days.
type AnalysisResult struct {
	bun.BaseModel `bun:"table:analysis_results"`

	ID         int64     `bun:",pk,autoincrement"`
	GuildID    uint64    `bun:",notnull"`
	MemberIDs  []uint64  `bun:"member_ids,type:jsonb,notnull"`
	Confidence int       `bun:",notnull"`
	Evidence   []string  `bun:"evidence,type:jsonb,notnull"`
	// Which pipeline produced the row, e.g. "comprehensive".
	AnalysisType string    `bun:",notnull"`
	CreatedAt    time.Time `bun:",notnull,default:current_timestamp"`
}

// PatternCache holds a serialised analyser output with an explicit expiry.
// Expiry is enforced on read; the purge worker removes stale rows.
type PatternCache struct {
	bun.BaseModel `bun:"table:pattern_cache"`

	ID          int64     `bun:",pk,autoincrement"`
	GuildID     uint64    `bun:",notnull"`
	PatternType string    `bun:",notnull"`
	Payload     []byte    `bun:"payload,type:jsonb,notnull"`
	ExpiresAt   time.Time `bun:",notnull"`
	CreatedAt   time.Time `bun:",notnull,default:current_timestamp"`
}
