package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/pkg/utils"
	"go.uber.org/zap"
)

// Fetcher turns a streamed roster into stored member rows, retrying
// transient transport failures.
type Fetcher struct {
	source    RosterSource
	logger    *zap.Logger
	retryOpts utils.RetryOptions
}

// NewFetcher creates a Fetcher reading from the given source.
func NewFetcher(source RosterSource, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source:    source,
		logger:    logger.Named("fetcher"),
		retryOpts: utils.GetTransportRetryOptions(),
	}
}

// SetRetryOptions overrides the transport retry behaviour.
func (f *Fetcher) SetRetryOptions(opts utils.RetryOptions) {
	f.retryOpts = opts
}

// RosterResult is a fetched guild roster. Members holds every member
// including bots; BotsSkipped counts the bots, which later stages ignore.
type RosterResult struct {
	Members     []*types.Member
	BotsSkipped int
}

// Fetch streams the full roster, retrying the whole stream on transient
// failures. Permission errors are not retried.
func (f *Fetcher) Fetch(ctx context.Context, guildID uint64, now time.Time) (*RosterResult, error) {
	result, err := utils.WithRetry(ctx, func() (*RosterResult, error) {
		members := make([]*types.Member, 0, 256)
		bots := 0

		err := f.source.StreamMembers(ctx, guildID, func(rm RosterMember) error {
			if rm.IsBot {
				bots++
			}

			members = append(members, &types.Member{
				ID:            rm.ID,
				GuildID:       guildID,
				Username:      rm.Username,
				DisplayName:   rm.DisplayName,
				Discriminator: rm.Discriminator,
				CreatedAt:     rm.CreatedAt.UTC(),
				JoinedAt:      rm.JoinedAt.UTC(),
				AvatarURL:     rm.AvatarURL,
				IsBot:         rm.IsBot,
				Roles:         rm.Roles,
				PremiumSince:  rm.PremiumSince,
				Status:        rm.Status,
				LastUpdated:   now,
			})

			return nil
		})
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return nil, utils.Permanent(err)
			}

			return nil, err
		}

		return &RosterResult{Members: members, BotsSkipped: bots}, nil
	}, f.retryOpts)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}

		f.logger.Error("Roster fetch failed after retries",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	// An all-bot roster still scans (and reports nothing); only a guild
	// with fewer than two members has nothing to analyse at all.
	if len(result.Members) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughMembers, len(result.Members))
	}

	f.logger.Debug("Fetched guild roster",
		zap.Uint64("guildID", guildID),
		zap.Int("members", len(result.Members)),
		zap.Int("bots", result.BotsSkipped))

	return result, nil
}
