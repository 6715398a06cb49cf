package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/veilguard/doppel/internal/database/dbretry"
	"github.com/veilguard/doppel/internal/database/types"
	"go.uber.org/zap"
)

// CacheModel handles database operations for cached analyser outputs.
// Entries carry an explicit expiry which is enforced on read.
type CacheModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCache creates a CacheModel for managing pattern cache entries.
func NewCache(db *bun.DB, logger *zap.Logger) *CacheModel {
	return &CacheModel{
		db:     db,
		logger: logger.Named("db_cache"),
	}
}

// Put stores a serialised analyser output for a guild, replacing any prior
// entry for the same pattern type.
func (m *CacheModel) Put(
	ctx context.Context, guildID uint64, patternType string, payload []byte, ttl time.Duration,
) error {
	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*types.PatternCache)(nil)).
			Where("guild_id = ?", guildID).
			Where("pattern_type = ?", patternType).
			Exec(ctx); err != nil {
			return err
		}

		entry := &types.PatternCache{
			GuildID:     guildID,
			PatternType: patternType,
			Payload:     payload,
			ExpiresAt:   time.Now().UTC().Add(ttl),
			CreatedAt:   time.Now().UTC(),
		}

		_, err := tx.NewInsert().Model(entry).Exec(ctx)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to cache pattern %s for guild %d: %w", patternType, guildID, err)
	}

	m.logger.Debug("Stored pattern cache entry",
		zap.Uint64("guildID", guildID),
		zap.String("patternType", patternType),
		zap.Duration("ttl", ttl))

	return nil
}

// Get retrieves a cached analyser output if present and not expired.
// Returns the payload and true on a fresh hit, or nil and false otherwise.
func (m *CacheModel) Get(ctx context.Context, guildID uint64, patternType string) ([]byte, bool, error) {
	var entry types.PatternCache

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		return m.db.NewSelect().
			Model(&entry).
			Where("guild_id = ?", guildID).
			Where("pattern_type = ?", patternType).
			Where("expires_at > ?", time.Now().UTC()).
			Order("created_at DESC").
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Missing or expired entry - this is expected
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get cached pattern %s for guild %d: %w", patternType, guildID, err)
	}

	m.logger.Debug("Pattern cache hit",
		zap.Uint64("guildID", guildID),
		zap.String("patternType", patternType))

	return entry.Payload, true, nil
}

// PurgeExpired removes cache entries whose expiry has passed.
// Returns the number of rows removed.
func (m *CacheModel) PurgeExpired(ctx context.Context) (int, error) {
	affected, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewDelete().
			Model((*types.PatternCache)(nil)).
			Where("expires_at < ?", time.Now().UTC()).
			Exec(ctx)
		if err != nil {
			return 0, err
		}

		rows, err := result.RowsAffected()

		return int(rows), err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}

	return affected, nil
}
