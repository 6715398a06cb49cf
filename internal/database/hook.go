package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// slowQueryThreshold marks successful queries worth surfacing at warn level.
const slowQueryThreshold = 250 * time.Millisecond

// queryHook routes bun query events into the database log file. Failures log
// at error level, slow queries at warn, the rest at debug.
type queryHook struct {
	logger *zap.Logger
}

func newQueryHook(logger *zap.Logger) *queryHook {
	return &queryHook{logger: logger.Named("query")}
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	// Missing rows are an expected outcome for lookups, not a failure.
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.Error("Query failed",
			zap.String("query", event.Query),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err))

		return
	}

	if elapsed >= slowQueryThreshold {
		h.logger.Warn("Slow query",
			zap.String("query", event.Query),
			zap.Duration("elapsed", elapsed))

		return
	}

	h.logger.Debug("Query executed",
		zap.String("query", event.Query),
		zap.Duration("elapsed", elapsed))
}
