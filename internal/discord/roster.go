// Package discord adapts the Discord gateway and REST API to the detection
// engine's transport interfaces and exposes the moderator-facing slash
// commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/veilguard/doppel/internal/detection"
	"go.uber.org/zap"
)

// memberPageSize is Discord's maximum page size for the member list.
const memberPageSize = 1000

// RosterSource streams guild members through the REST member list.
type RosterSource struct {
	rest   rest.Rest
	logger *zap.Logger
}

// NewRosterSource creates a RosterSource on the given REST client.
func NewRosterSource(restClient rest.Rest, logger *zap.Logger) *RosterSource {
	return &RosterSource{
		rest:   restClient,
		logger: logger.Named("roster_source"),
	}
}

// StreamMembers pages through the guild's member list, invoking each per
// member. Forbidden responses map to detection.ErrPermissionDenied.
func (r *RosterSource) StreamMembers(
	ctx context.Context, guildID uint64, each func(detection.RosterMember) error,
) error {
	var after snowflake.ID

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := r.rest.GetMembers(snowflake.ID(guildID), memberPageSize, after)
		if err != nil {
			return classifyRestError(err)
		}

		for _, member := range chunk {
			if err := each(convertMember(member)); err != nil {
				return err
			}
		}

		if len(chunk) < memberPageSize {
			return nil
		}

		after = chunk[len(chunk)-1].User.ID
	}
}

// convertMember maps a Discord member onto the engine's roster DTO. The
// account creation instant comes from the user ID's snowflake timestamp.
func convertMember(member discord.Member) detection.RosterMember {
	user := member.User

	displayName := ""
	if member.Nick != nil {
		displayName = *member.Nick
	} else if user.GlobalName != nil {
		displayName = *user.GlobalName
	}

	roles := make([]uint64, 0, len(member.RoleIDs))
	for _, roleID := range member.RoleIDs {
		roles = append(roles, uint64(roleID))
	}

	return detection.RosterMember{
		ID:            uint64(user.ID),
		Username:      user.Username,
		DisplayName:   displayName,
		Discriminator: user.Discriminator,
		CreatedAt:     user.ID.Time(),
		JoinedAt:      member.JoinedAt,
		AvatarURL:     user.EffectiveAvatarURL(),
		IsBot:         user.Bot,
		Roles:         roles,
		PremiumSince:  member.PremiumSince,
	}
}

// classifyRestError maps forbidden REST responses onto the engine's
// permission error so they are never retried.
func classifyRestError(err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", detection.ErrPermissionDenied, restErr.Message)
	}

	return err
}
