package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/suPer8Hu/agent-services/internal/observability"
)

// RunSweeper calls SweepExpired every interval until ctx is done.
func RunSweeper(ctx context.Context, store Store, interval time.Duration) {
	log := observability.Logger().With(slog.String("component", "session_sweeper"))
	log.Info("session sweeper started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if _, err := store.SweepExpired(ctx); err != nil {
				log.Error("session sweep failed", slog.Any("err", err))
			}
		}
	}
}
