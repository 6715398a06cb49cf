package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/veilguard/doppel/internal/database/dbretry"
	"github.com/veilguard/doppel/internal/database/types"
	"go.uber.org/zap"
)

// MemberModel handles database operations for guild member snapshots.
type MemberModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMember creates a MemberModel for managing member rows.
func NewMember(db *bun.DB, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		logger: logger.Named("db_member"),
	}
}

// ReplaceGuildMembers replaces the stored roster and message timings for a
// guild in a single transaction. Existing rows for the guild are deleted
// first; on any failure the transaction rolls back entirely.
func (m *MemberModel) ReplaceGuildMembers(
	ctx context.Context, guildID uint64, members []*types.Member, timings []*types.MessageTiming,
) error {
	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*types.Member)(nil)).
			Where("guild_id = ?", guildID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete existing members: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.MessageTiming)(nil)).
			Where("guild_id = ?", guildID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete existing timings: %w", err)
		}

		if len(members) > 0 {
			if _, err := tx.NewInsert().Model(&members).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert members: %w", err)
			}
		}

		if len(timings) > 0 {
			if _, err := tx.NewInsert().Model(&timings).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert message timings: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace members for guild %d: %w", guildID, err)
	}

	m.logger.Debug("Replaced guild member snapshot",
		zap.Uint64("guildID", guildID),
		zap.Int("memberCount", len(members)),
		zap.Int("timingCount", len(timings)))

	return nil
}

// GetGuildMembers retrieves all stored members for a guild ordered by
// account creation time ascending.
func (m *MemberModel) GetGuildMembers(ctx context.Context, guildID uint64) ([]*types.Member, error) {
	var members []*types.Member

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return m.db.NewSelect().
			Model(&members).
			Where("guild_id = ?", guildID).
			Order("created_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get members for guild %d: %w", guildID, err)
	}

	return members, nil
}

// GetGuildTimings retrieves sampled message timestamps for a guild keyed by
// member ID, ordered by timestamp ascending within each member.
func (m *MemberModel) GetGuildTimings(ctx context.Context, guildID uint64) (map[uint64][]time.Time, error) {
	var rows []*types.MessageTiming

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return m.db.NewSelect().
			Model(&rows).
			Where("guild_id = ?", guildID).
			Order("message_timestamp ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message timings for guild %d: %w", guildID, err)
	}

	timings := make(map[uint64][]time.Time, len(rows))
	for _, row := range rows {
		timings[row.MemberID] = append(timings[row.MemberID], row.MessageTimestamp)
	}

	return timings, nil
}

// PurgeOldTimings removes message timing rows recorded before the cutoff.
// Returns the number of rows removed.
func (m *MemberModel) PurgeOldTimings(ctx context.Context, cutoff time.Time) (int, error) {
	affected, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewDelete().
			Model((*types.MessageTiming)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		rows, err := result.RowsAffected()

		return int(rows), err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge old message timings: %w", err)
	}

	return affected, nil
}
