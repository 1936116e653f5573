package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/floodlib/ripple-engine/internal/jobstore"
)

// defaultPollInterval matches the worker pool's own claim-poll cadence,
// since queue depth changes at roughly the same rate jobs are claimed.
const defaultPollInterval = 500 * time.Millisecond

// PollQueueDepth polls store for the number of accepted (unclaimed) jobs
// every interval and reports it on reg, until ctx is canceled. interval <= 0
// uses defaultPollInterval.
func PollQueueDepth(ctx context.Context, store jobstore.Store, reg *Registry, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := store.List(ctx, jobstore.ListFilter{Status: jobstore.StatusAccepted})
			if err != nil {
				if logger != nil {
					logger.Warn("failed to poll queue depth", slog.String("error", err.Error()))
				}

				continue
			}

			reg.SetQueueDepth(len(jobs))
		}
	}
}
