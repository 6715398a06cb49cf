package detection

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/setup/config"
	"github.com/veilguard/doppel/pkg/utils"
	"go.uber.org/zap"
)

// defaultChannelPause spaces out history reads so a scan never bursts
// through the transport's rate budget.
const defaultChannelPause = 100 * time.Millisecond

// Sampler reads recent channel history and distils it into per-member
// activity summaries. Sampling fails open: an unreadable channel is skipped
// and only flagged, never fatal.
type Sampler struct {
	source    HistorySource
	cfg       *config.Detection
	logger    *zap.Logger
	pause     time.Duration
	retryOpts utils.RetryOptions
}

// NewSampler creates a Sampler with the configured caps and window.
func NewSampler(source HistorySource, cfg *config.Detection, logger *zap.Logger) *Sampler {
	return &Sampler{
		source:    source,
		cfg:       cfg,
		logger:    logger.Named("sampler"),
		pause:     defaultChannelPause,
		retryOpts: utils.GetTransportRetryOptions(),
	}
}

// SetRetryOptions overrides the transport retry behaviour.
func (s *Sampler) SetRetryOptions(opts utils.RetryOptions) {
	s.retryOpts = opts
}

// SampleResult is the outcome of one activity sampling pass. The sampled
// activity is also written onto the member rows in place.
type SampleResult struct {
	// Timing rows for persistence alongside the member snapshot.
	Timings []*types.MessageTiming
	// Message timestamps keyed by member ID, ascending.
	TimingsByMember map[uint64][]time.Time
	// Members with at least one sampled message.
	MembersSampled int
	ChannelsRead   int
	ChannelsFailed int
	// Degraded is set when any channel was skipped or none were readable,
	// so behavioural analysis ran on partial data.
	Degraded bool
}

// Sample reads history from up to the configured number of channels and
// aggregates activity for the given members.
func (s *Sampler) Sample(
	ctx context.Context, guildID uint64, members []*types.Member, now time.Time,
) (*SampleResult, error) {
	byID := make(map[uint64]*types.Member, len(members))
	for _, member := range members {
		if !member.IsBot {
			byID[member.ID] = member
		}
	}

	channels, err := s.source.TextChannels(ctx, guildID)
	if err != nil {
		s.logger.Warn("Failed to list text channels, skipping activity sampling",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return &SampleResult{TimingsByMember: make(map[uint64][]time.Time), Degraded: true}, nil
	}

	channels = s.eligibleChannels(channels)

	result := &SampleResult{TimingsByMember: make(map[uint64][]time.Time)}
	agg := newActivityAggregator()
	since := now.Add(-time.Duration(s.cfg.SampleWindowDays) * 24 * time.Hour)

	for i, channel := range channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 0 {
			select {
			case <-time.After(s.pause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		messages, err := s.readChannel(ctx, channel, since)
		if err != nil {
			result.ChannelsFailed++
			s.logger.Warn("Skipping unreadable channel",
				zap.Uint64("guildID", guildID),
				zap.Uint64("channelID", channel.ID),
				zap.String("channel", channel.Name),
				zap.Error(err))

			continue
		}

		result.ChannelsRead++

		for _, message := range messages {
			if _, known := byID[message.AuthorID]; !known {
				continue
			}

			agg.add(message, now)

			result.Timings = append(result.Timings, &types.MessageTiming{
				MemberID:         message.AuthorID,
				GuildID:          guildID,
				ChannelID:        message.ChannelID,
				MessageTimestamp: message.Timestamp.UTC(),
				MessageLength:    message.Length,
				CreatedAt:        now,
			})
		}
	}

	result.Degraded = result.ChannelsFailed > 0 || (len(channels) > 0 && result.ChannelsRead == 0)
	result.MembersSampled = agg.apply(byID, now)

	for memberID, timestamps := range agg.timestamps {
		result.TimingsByMember[memberID] = timestamps
	}

	s.logger.Debug("Sampled guild activity",
		zap.Uint64("guildID", guildID),
		zap.Int("channelsRead", result.ChannelsRead),
		zap.Int("channelsFailed", result.ChannelsFailed),
		zap.Int("membersSampled", result.MembersSampled))

	return result, nil
}

// eligibleChannels filters excluded channels and applies the channel cap.
func (s *Sampler) eligibleChannels(channels []Channel) []Channel {
	excluded := make(map[uint64]struct{}, len(s.cfg.ExcludedChannels))
	for _, id := range s.cfg.ExcludedChannels {
		excluded[id] = struct{}{}
	}

	eligible := make([]Channel, 0, len(channels))

	for _, channel := range channels {
		if _, skip := excluded[channel.ID]; skip {
			continue
		}

		eligible = append(eligible, channel)

		if len(eligible) == s.cfg.SampleChannelCap {
			break
		}
	}

	return eligible
}

// readChannel reads one channel's recent history with transport retries.
func (s *Sampler) readChannel(ctx context.Context, channel Channel, since time.Time) ([]Message, error) {
	return utils.WithRetry(ctx, func() ([]Message, error) {
		messages, err := s.source.RecentMessages(ctx, channel.ID, since, s.cfg.SampleMessageCap)
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return nil, utils.Permanent(err)
			}

			return nil, err
		}

		return messages, nil
	}, s.retryOpts)
}

// activityAggregator accumulates per-member activity across channels.
type activityAggregator struct {
	count7d     map[uint64]int
	count30d    map[uint64]int
	channels    map[uint64]map[uint64]struct{}
	totalLength map[uint64]int
	reactions   map[uint64]int
	timestamps  map[uint64][]time.Time
}

func newActivityAggregator() *activityAggregator {
	return &activityAggregator{
		count7d:     make(map[uint64]int),
		count30d:    make(map[uint64]int),
		channels:    make(map[uint64]map[uint64]struct{}),
		totalLength: make(map[uint64]int),
		reactions:   make(map[uint64]int),
		timestamps:  make(map[uint64][]time.Time),
	}
}

func (a *activityAggregator) add(message Message, now time.Time) {
	author := message.AuthorID
	age := now.Sub(message.Timestamp)

	a.count30d[author]++
	if age <= 7*24*time.Hour {
		a.count7d[author]++
	}

	if a.channels[author] == nil {
		a.channels[author] = make(map[uint64]struct{})
	}
	a.channels[author][message.ChannelID] = struct{}{}

	a.totalLength[author] += message.Length
	a.reactions[author] += message.Reactions
	a.timestamps[author] = append(a.timestamps[author], message.Timestamp.UTC())
}

// apply writes the aggregated summaries onto the member rows and returns the
// number of members with any sampled activity.
func (a *activityAggregator) apply(byID map[uint64]*types.Member, now time.Time) int {
	sampled := 0

	for id, member := range byID {
		count := a.count30d[id]
		if count == 0 {
			continue
		}

		sampled++
		member.MessageCount7d = a.count7d[id]
		member.MessageCount30d = count
		member.ChannelsUsed = len(a.channels[id])
		member.AvgMessageLength = float64(a.totalLength[id]) / float64(count)
		member.ReactionCount = a.reactions[id]
		member.LastUpdated = now

		timestamps := a.timestamps[id]
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	}

	return sampled
}
