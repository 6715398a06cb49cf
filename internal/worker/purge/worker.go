// Package purge removes aged detection data: expired analyser cache rows,
// analysis results past retention and message timings outside the sampling
// window.
package purge

import (
	"context"
	"time"

	"github.com/veilguard/doppel/internal/database"
	"github.com/veilguard/doppel/internal/progress"
	"github.com/veilguard/doppel/internal/setup/config"
	"go.uber.org/zap"
)

const (
	// resultRetention is how long stored candidate groups are kept.
	resultRetention = 30 * 24 * time.Hour
	// timingRetention keeps the raw per-message rows short-lived; the
	// aggregated counts on the member rows outlive them.
	timingRetention = 7 * 24 * time.Hour
)

// Worker runs the periodic purge loop.
type Worker struct {
	db       *database.Repository
	bar      *progress.Bar
	logger   *zap.Logger
	interval time.Duration
}

// New creates a purge worker with the configured cycle interval.
func New(db *database.Repository, cfg *config.WorkerConfig, bar *progress.Bar, logger *zap.Logger) *Worker {
	interval := time.Duration(cfg.PurgeInterval) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Worker{
		db:       db,
		bar:      bar,
		logger:   logger.Named("purge_worker"),
		interval: interval,
	}
}

// Start runs purge cycles until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Purge worker started", zap.Duration("interval", w.interval))

	for {
		w.bar.Reset()
		w.runCycle(ctx)
		w.bar.SetStepMessage("Completed", 100)

		select {
		case <-ctx.Done():
			w.logger.Info("Purge worker stopped")
			return
		case <-time.After(w.interval):
		}
	}
}

// runCycle performs one pass over all three stores.
func (w *Worker) runCycle(ctx context.Context) {
	now := time.Now().UTC()

	w.bar.SetStepMessage("Purging expired pattern cache", 25)

	if purged, err := w.db.Cache().PurgeExpired(ctx); err != nil {
		w.logger.Error("Failed to purge expired cache entries", zap.Error(err))
	} else if purged > 0 {
		w.logger.Info("Purged expired cache entries", zap.Int("count", purged))
	}

	w.bar.SetStepMessage("Purging old analysis results", 55)

	if purged, err := w.db.Analysis().PurgeOldResults(ctx, now.Add(-resultRetention)); err != nil {
		w.logger.Error("Failed to purge old analysis results", zap.Error(err))
	} else if purged > 0 {
		w.logger.Info("Purged old analysis results", zap.Int("count", purged))
	}

	w.bar.SetStepMessage("Purging old message timings", 85)

	if purged, err := w.db.Member().PurgeOldTimings(ctx, now.Add(-timingRetention)); err != nil {
		w.logger.Error("Failed to purge old message timings", zap.Error(err))
	} else if purged > 0 {
		w.logger.Info("Purged old message timings", zap.Int("count", purged))
	}
}
