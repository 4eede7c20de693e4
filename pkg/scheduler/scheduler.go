package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Refresher refreshes every dashboard view.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Start refreshes every interval until ctx is done. A refresh runs to completion before
// the next tick is taken, so slow refreshes drop ticks instead of piling up. Refresh
// errors are logged and do not stop the loop; the views carry the error state.
func Start(ctx context.Context, r Refresher, interval time.Duration, log *zap.SugaredLogger) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: must be greater than 0, got %s", interval)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			start := time.Now()
			if err := r.RefreshAll(ctx); err != nil {
				log.Warnw("scheduled refresh finished with errors", "error", err, "duration", time.Since(start))
				continue
			}
			log.Debugw("scheduled refresh finished", "duration", time.Since(start))
		}
	}
}
