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

// AnalysisModel handles database operations for stored candidate groups.
type AnalysisModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAnalysis creates an AnalysisModel for managing analysis result rows.
func NewAnalysis(db *bun.DB, logger *zap.Logger) *AnalysisModel {
	return &AnalysisModel{
		db:     db,
		logger: logger.Named("db_analysis"),
	}
}

// RecordGroup stores one scored candidate group. Rows are append-only.
func (m *AnalysisModel) RecordGroup(ctx context.Context, result *types.AnalysisResult) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(result).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record candidate group for guild %d: %w", result.GuildID, err)
	}

	m.logger.Debug("Recorded candidate group",
		zap.Uint64("guildID", result.GuildID),
		zap.Int("memberCount", len(result.MemberIDs)),
		zap.Int("confidence", result.Confidence))

	return nil
}

// RecentGroups retrieves candidate groups stored within the given window,
// ordered by confidence descending then recency descending.
func (m *AnalysisModel) RecentGroups(
	ctx context.Context, guildID uint64, within time.Duration,
) ([]*types.AnalysisResult, error) {
	var results []*types.AnalysisResult

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return m.db.NewSelect().
			Model(&results).
			Where("guild_id = ?", guildID).
			Where("created_at > ?", time.Now().UTC().Add(-within)).
			Order("confidence DESC", "created_at DESC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent groups for guild %d: %w", guildID, err)
	}

	return results, nil
}

// PurgeOldResults removes analysis result rows created before the cutoff.
// Returns the number of rows removed.
func (m *AnalysisModel) PurgeOldResults(ctx context.Context, cutoff time.Time) (int, error) {
	affected, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewDelete().
			Model((*types.AnalysisResult)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		rows, err := result.RowsAffected()

		return int(rows), err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge old analysis results: %w", err)
	}

	return affected, nil
}
