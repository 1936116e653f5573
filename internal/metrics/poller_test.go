package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/metrics"
)

func TestPollQueueDepth_ReportsAcceptedJobCount(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 4; i++ {
		_, err := store.Enqueue(ctx, "conflate_model", nil)
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	go metrics.PollQueueDepth(ctx, store, m, 5*time.Millisecond, nil)

	require.Eventually(t, func() bool {
		return gaugeValue(t, m.JobQueueDepth) == 4.0
	}, time.Second, 5*time.Millisecond)

	cancel()
}
