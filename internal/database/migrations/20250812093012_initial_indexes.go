package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Member lookup indexes
			CREATE INDEX IF NOT EXISTS idx_members_guild_id
			ON members (guild_id);

			CREATE INDEX IF NOT EXISTS idx_members_created_at
			ON members (created_at);

			CREATE INDEX IF NOT EXISTS idx_members_joined_at
			ON members (joined_at);

			-- Analysis result indexes
			CREATE INDEX IF NOT EXISTS idx_analysis_results_guild_id
			ON analysis_results (guild_id);

			CREATE INDEX IF NOT EXISTS idx_analysis_results_confidence
			ON analysis_results (confidence);

			CREATE INDEX IF NOT EXISTS idx_analysis_results_created_at
			ON analysis_results (created_at);

			-- Pattern cache indexes
			CREATE INDEX IF NOT EXISTS idx_pattern_cache_guild_type
			ON pattern_cache (guild_id, pattern_type);

			CREATE INDEX IF NOT EXISTS idx_pattern_cache_expires_at
			ON pattern_cache (expires_at);

			-- Message timing indexes
			CREATE INDEX IF NOT EXISTS idx_message_timings_member_id
			ON message_timings (member_id);

			CREATE INDEX IF NOT EXISTS idx_message_timings_guild_id
			ON message_timings (guild_id);

			CREATE INDEX IF NOT EXISTS idx_message_timings_timestamp
			ON message_timings (message_timestamp);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_members_guild_id;
			DROP INDEX IF EXISTS idx_members_created_at;
			DROP INDEX IF EXISTS idx_members_joined_at;
			DROP INDEX IF EXISTS idx_analysis_results_guild_id;
			DROP INDEX IF EXISTS idx_analysis_results_confidence;
			DROP INDEX IF EXISTS idx_analysis_results_created_at;
			DROP INDEX IF EXISTS idx_pattern_cache_guild_type;
			DROP INDEX IF EXISTS idx_pattern_cache_expires_at;
			DROP INDEX IF EXISTS idx_message_timings_member_id;
			DROP INDEX IF EXISTS idx_message_timings_guild_id;
			DROP INDEX IF EXISTS idx_message_timings_timestamp;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
