package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Member is one guild member's profile and sampled activity for a scan run.
// Rows are replaced wholesale per guild on every scan.
type Member struct {
	bun.BaseModel `bun:"table:members"`

	ID            uint64    `bun:",pk"`
	GuildID       uint64    `bun:",pk"`
	Username      string    `bun:",notnull"`
	DisplayName   string    `bun:"display_name"`
	Discriminator string    `bun:"discriminator"`
	CreatedAt     time.Time `bun:",notnull"`
	JoinedAt      time.Time `bun:",notnull"`
	AvatarURL     string    `bun:"avatar_url"`
	IsBot         bool      `bun:",notnull"`
	// Role IDs excluding the guild's default role.
	Roles        []uint64   `bun:"roles,type:jsonb"`
	PremiumSince *time.Time `bun:"premium_since"`
	Status       string     `bun:"status"`

	// Sampled activity summary.
	MessageCount7d   int       `bun:"msg_count_7d,notnull,default:0"`
	MessageCount30d  int       `bun:"msg_count_30d,notnull,default:0"`
	ChannelsUsed     int       `bun:"channels_used,notnull,default:0"`
	AvgMessageLength float64   `bun:"avg_msg_length,notnull,default:0"`
	ReactionCount    int       `bun:"reaction_count,notnull,default:0"`
	LastUpdated      time.Time `bun:",notnull"`
}

// AccountAgeDays returns the whole days since account creation at the given instant.
func (m *Member) AccountAgeDays(now time.Time) int {
	return int(now.Sub(m.CreatedAt).Hours() / 24)
}

// TenureDays returns the whole days since the member joined the guild.
func (m *Member) TenureDays(now time.Time) int {
	return int(now.Sub(m.JoinedAt).Hours() / 24)
}

// ActivityPerDay returns 30-day messages averaged over guild tenure.
func (m *Member) ActivityPerDay(now time.Time) float64 {
	return float64(m.MessageCount30d) / float64(max(m.TenureDays(now), 1))
}

// HasActivity reports whether the member produced any sampled messages.
func (m *Member) HasActivity() bool {
	return m.MessageCount30d > 0 || m.MessageCount7d > 0
}

// MessageTiming is a single sampled message timestamp used for
// hour-of-day behavioural profiling.
type MessageTiming struct {
	bun.BaseModel `bun:"table:message_timings"`

	ID               int64     `bun:",pk,autoincrement"`
	MemberID         uint64    `bun:",notnull"`
	GuildID          uint64    `bun:",notnull"`
	ChannelID        uint64    `bun:",notnull"`
	MessageTimestamp time.Time `bun:",notnull"`
	MessageLength    int       `bun:",notnull,default:0"`
	CreatedAt        time.Time `bun:",notnull,default:current_timestamp"`
}
