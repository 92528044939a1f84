package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/uex-relay/internal/store"
)

const linkSweepInterval = 5 * time.Minute

// StartLinkSweeper periodically removes negotiation links not updated within
// ttl. A ttl of zero disables the sweeper.
func StartLinkSweeper(ctx context.Context, links store.LinkStore, ttl time.Duration) {
	if ttl <= 0 {
		slog.Info("Link sweeper disabled")
		return
	}
	interval := linkSweepInterval
	if ttl < interval {
		interval = ttl
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Link sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				SweepLinks(ctx, links, ttl, time.Now())
			case <-ctx.Done():
				slog.Info("Link sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepLinks deletes links older than now-ttl and returns how many were removed.
func SweepLinks(ctx context.Context, links store.LinkStore, ttl time.Duration, now time.Time) int64 {
	deleted, err := links.DeleteLinksOlderThan(ctx, now.Add(-ttl))
	if err != nil {
		slog.Error("Link sweeper failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Link sweeper removed stale links", "count", deleted)
	}
	return deleted
}
