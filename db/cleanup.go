package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartCleanupJob 定期清理过期的限流提示
// Blocks until ctx is done.
func (s *Store) StartCleanupJob(ctx context.Context, interval, noticeTTL time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCleanup(ctx, noticeTTL)

	for {
		select {
		case <-ticker.C:
			s.runCleanup(ctx, noticeTTL)
		case <-ctx.Done():
			s.log.Info("Cleanup job stopped")
			return
		}
	}
}

func (s *Store) runCleanup(ctx context.Context, noticeTTL time.Duration) {
	// RateLimitNotice deletes the row itself once it is expired.
	if _, err := s.RateLimitNotice(ctx, noticeTTL); err != nil && ctx.Err() == nil {
		s.log.Warn("Cleanup of rate limit notice failed", zap.Error(err))
	}
}
