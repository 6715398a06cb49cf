package detection

import (
	"context"
	"time"
)

// RosterMember is one guild member as reported by the transport, before it
// becomes a stored Member row.
type RosterMember struct {
	ID            uint64
	Username      string
	DisplayName   string
	Discriminator string
	CreatedAt     time.Time
	JoinedAt      time.Time
	AvatarURL     string
	IsBot         bool
	Roles         []uint64
	PremiumSince  *time.Time
	Status        string
}

// Channel identifies a readable text channel.
type Channel struct {
	ID   uint64
	Name string
}

// Message is one sampled message. Only the fields the analysers need are
// carried; content never leaves the transport layer.
type Message struct {
	AuthorID  uint64
	ChannelID uint64
	Timestamp time.Time
	Length    int
	Reactions int
}

// RosterSource streams a guild's member list. Implementations page through
// the transport and invoke each per member; returning an error from each
// aborts the stream.
type RosterSource interface {
	StreamMembers(ctx context.Context, guildID uint64, each func(RosterMember) error) error
}

// HistorySource reads recent channel history for activity sampling.
type HistorySource interface {
	// TextChannels lists the guild's text channels the bot can read.
	TextChannels(ctx context.Context, guildID uint64) ([]Channel, error)
	// RecentMessages returns messages in the channel newer than since,
	// newest first, up to limit.
	RecentMessages(ctx context.Context, channelID uint64, since time.Time, limit int) ([]Message, error)
}
