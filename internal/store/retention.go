package store

import (
	"context"
	"log/slog"
	"time"
)

// RetentionInterval is how often the retention worker sweeps in production.
const RetentionInterval = time.Hour

// RunRetention deletes turns older than retention, once immediately and then
// every interval, and blocks until ctx is done. A non-positive retention keeps
// turns forever and returns at once.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if retention <= 0 {
		slog.Info("Transcript retention disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", interval, "retention", retention)

	sweepTurns(ctx, repo, retention, time.Now())
	for {
		select {
		case now := <-ticker.C:
			sweepTurns(ctx, repo, retention, now)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return
		}
	}
}

func sweepTurns(ctx context.Context, repo Repository, retention time.Duration, now time.Time) int64 {
	deleted, err := repo.DeleteTurnsBefore(ctx, now.Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Retention worker failed to delete old turns", "error", err)
		}
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker deleted old turns", "count", deleted)
	}
	return deleted
}
