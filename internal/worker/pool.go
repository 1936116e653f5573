// Package worker runs a fixed-size pool of goroutines that claim jobs from
// the job store and hand each one to the process supervisor. The pool does
// not itself know anything about the hydraulic pipeline; it only claims,
// dispatches, and tracks in-flight work.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/floodlib/ripple-engine/internal/jobstore"
)

// Runner executes one claimed job to completion. The process supervisor
// implements this; tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, job *jobstore.Job)
}

// DefaultSize is the worker count used when Config.Size is zero:
// max(NumCPU-2, 1), per the spec's stated default.
func DefaultSize() int {
	if n := runtime.NumCPU() - 2; n > 0 {
		return n
	}

	return 1
}

// Config configures a Pool.
type Config struct {
	// Size is the number of concurrent workers. Zero means DefaultSize().
	Size int
	// PollInterval bounds how long a worker waits before re-attempting a
	// claim when the store has no accepted job available.
	PollInterval time.Duration
}

// Pool is a fixed-size set of workers, each looping claim-then-run against
// a Store and a Runner.
type Pool struct {
	store  jobstore.Store
	runner Runner
	logger *slog.Logger
	size   int
	poll   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New constructs a Pool. It does not start any goroutines until Start is called.
func New(store jobstore.Store, runner Runner, cfg Config, logger *slog.Logger) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize()
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	return &Pool{store: store, runner: runner, logger: logger, size: size, poll: poll}
}

// Size returns the pool's configured worker count.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the pool's workers. Start is a no-op if the pool is
// already running.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)

		go p.loop(loopCtx, i)
	}
}

// Shutdown stops accepting new claims and waits up to grace for in-flight
// jobs to finish their current claim-run cycle before returning. Shutdown
// cancels the context passed to every in-flight Runner.Run call; how soon a
// dispatched job stops depends on the Runner honoring that cancellation.
func (p *Pool) Shutdown(grace time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	cancel := p.cancel
	p.running = false
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		if p.logger != nil {
			p.logger.Warn("worker pool shutdown grace period elapsed with workers still running")
		}
	}
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.Claim(ctx)

		switch {
		case err == nil:
			p.runner.Run(ctx, job)

			continue
		case errors.Is(err, jobstore.ErrNoJobAvailable):
			// fall through to the poll wait below
		default:
			if p.logger != nil {
				p.logger.Error("worker failed to claim job", slog.Int("worker", workerID), slog.String("error", err.Error()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
