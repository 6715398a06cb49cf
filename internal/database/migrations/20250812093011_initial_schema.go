package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/veilguard/doppel/internal/database/types"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model any
			name  string
		}{
			{(*types.Member)(nil), "members"},
			{(*types.AnalysisResult)(nil), "analysis_results"},
			{(*types.PatternCache)(nil), "pattern_cache"},
			{(*types.MessageTiming)(nil), "message_timings"},
		}

		for _, table := range tables {
			_, err := db.NewCreateTable().
				Model(table.model).
				ModelTableExpr(table.name).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %s: %w", table.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		tables := []string{"message_timings", "pattern_cache", "analysis_results", "members"}

		for _, table := range tables {
			_, err := db.NewRaw(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}

		return nil
	})
}
