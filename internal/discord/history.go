package discord

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/veilguard/doppel/internal/detection"
	"go.uber.org/zap"
)

// messagePageSize is Discord's maximum page size for channel history.
const messagePageSize = 100

// HistorySource reads channel history through the REST API.
type HistorySource struct {
	rest   rest.Rest
	logger *zap.Logger
}

// NewHistorySource creates a HistorySource on the given REST client.
func NewHistorySource(restClient rest.Rest, logger *zap.Logger) *HistorySource {
	return &HistorySource{
		rest:   restClient,
		logger: logger.Named("history_source"),
	}
}

// TextChannels lists the guild's plain text channels.
func (h *HistorySource) TextChannels(ctx context.Context, guildID uint64) ([]detection.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	channels, err := h.rest.GetGuildChannels(snowflake.ID(guildID))
	if err != nil {
		return nil, classifyRestError(err)
	}

	var out []detection.Channel

	for _, channel := range channels {
		if channel.Type() != discord.ChannelTypeGuildText {
			continue
		}

		out = append(out, detection.Channel{
			ID:   uint64(channel.ID()),
			Name: channel.Name(),
		})
	}

	return out, nil
}

// RecentMessages pages backwards through a channel until the window start or
// the limit is reached.
func (h *HistorySource) RecentMessages(
	ctx context.Context, channelID uint64, since time.Time, limit int,
) ([]detection.Message, error) {
	var (
		out    []detection.Message
		before snowflake.ID
	)

	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageSize := min(limit-len(out), messagePageSize)

		page, err := h.rest.GetMessages(snowflake.ID(channelID), 0, before, 0, pageSize)
		if err != nil {
			return nil, classifyRestError(err)
		}

		if len(page) == 0 {
			break
		}

		reachedWindowStart := false

		for _, message := range page {
			timestamp := message.ID.Time()
			if timestamp.Before(since) {
				reachedWindowStart = true
				break
			}

			out = append(out, convertMessage(message))
		}

		if reachedWindowStart || len(page) < pageSize {
			break
		}

		before = page[len(page)-1].ID
	}

	return out, nil
}

// convertMessage keeps only the aggregate fields; message content never
// leaves this function.
func convertMessage(message discord.Message) detection.Message {
	reactions := 0
	for _, reaction := range message.Reactions {
		reactions += reaction.Count
	}

	return detection.Message{
		AuthorID:  uint64(message.Author.ID),
		ChannelID: uint64(message.ChannelID),
		Timestamp: message.ID.Time(),
		Length:    len([]rune(message.Content)),
		Reactions: reactions,
	}
}
