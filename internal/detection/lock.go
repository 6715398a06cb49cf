package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// scanLockTTL bounds how long a crashed scan can block a guild.
const scanLockTTL = 15 * time.Minute

// ScanLock enforces one concurrent scan per guild across all bot processes,
// backed by a redis SET NX key with a TTL.
type ScanLock struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewScanLock creates a ScanLock on the given redis client.
func NewScanLock(client rueidis.Client, logger *zap.Logger) *ScanLock {
	return &ScanLock{
		client: client,
		logger: logger.Named("scan_lock"),
	}
}

func lockKey(guildID uint64) string {
	return fmt.Sprintf("scan_lock:%d", guildID)
}

// Acquire takes the guild's scan lock and returns a release function. It
// returns ErrScanBusy when another scan already holds it.
func (l *ScanLock) Acquire(ctx context.Context, guildID uint64) (func(), error) {
	key := lockKey(guildID)

	resp := l.client.Do(ctx, l.client.B().
		Set().Key(key).Value("1").Nx().
		Ex(scanLockTTL).
		Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrScanBusy
		}

		return nil, fmt.Errorf("failed to acquire scan lock for guild %d: %w", guildID, err)
	}

	release := func() {
		// Release outlives the scan's context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.client.Do(releaseCtx, l.client.B().Del().Key(key).Build()).Error(); err != nil {
			l.logger.Warn("Failed to release scan lock, the TTL will reclaim it",
				zap.Uint64("guildID", guildID),
				zap.Error(err))
		}
	}

	return release, nil
}
