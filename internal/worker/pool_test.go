package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/worker"
)

type fakeRunner struct {
	mu  sync.Mutex
	ran []uuid.UUID
}

func (r *fakeRunner) Run(_ context.Context, job *jobstore.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ran = append(r.ran, job.JobID)
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.ran)
}

func TestPool_ClaimsAndRunsJobs(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Enqueue(ctx, "conflate_model", nil)
		require.NoError(t, err)
	}

	runner := &fakeRunner{}
	pool := worker.New(store, runner, worker.Config{Size: 2, PollInterval: 10 * time.Millisecond}, nil)

	pool.Start(ctx)
	defer pool.Shutdown(time.Second)

	require.Eventually(t, func() bool {
		return runner.count() == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPool_SizeDefaultsToAtLeastOne(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()
	pool := worker.New(store, &fakeRunner{}, worker.Config{}, nil)

	assert.GreaterOrEqual(t, pool.Size(), 1)
}

func TestPool_ShutdownStopsWorkers(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()
	runner := &fakeRunner{}
	pool := worker.New(store, runner, worker.Config{Size: 1, PollInterval: 5 * time.Millisecond}, nil)

	ctx := context.Background()
	pool.Start(ctx)
	pool.Shutdown(time.Second)

	var calledAfterShutdown atomic.Bool
	_, err := store.Enqueue(ctx, "conflate_model", nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	if runner.count() > 0 {
		calledAfterShutdown.Store(true)
	}

	assert.False(t, calledAfterShutdown.Load())
}
