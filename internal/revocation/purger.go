package revocation

import (
	"context"
	"log/slog"
	"time"
)

// RunPurger purges the ledger on every tick until ctx is cancelled.
func RunPurger(ctx context.Context, purger Purger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			purged, err := purger.Purge(ctx, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if purged > 0 {
				slog.Debug("purged revoked tokens", "count", purged)
			}
		}
	}
}
