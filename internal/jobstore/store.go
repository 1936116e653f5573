package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when a job id has no matching row.
var ErrJobNotFound = errors.New("job not found")

// ErrNoJobAvailable is returned by Claim when no accepted job is waiting.
var ErrNoJobAvailable = errors.New("no job available to claim")

// Store is what the worker pool, the HTTP surface, and the process
// supervisor need from job persistence. Concrete implementations
// (PostgreSQL, in-memory) live alongside this interface in this package.
type Store interface {
	// Enqueue inserts a new job in StatusAccepted and returns its id.
	Enqueue(ctx context.Context, process string, input json.RawMessage) (uuid.UUID, error)

	// Claim atomically picks the oldest accepted job, transitions it to
	// StatusRunning, and returns it. Returns ErrNoJobAvailable if the queue
	// is empty. Concurrent callers never observe the same job.
	Claim(ctx context.Context) (*Job, error)

	// MarkStarted records the supervisor's child process id and start time
	// for a claimed job.
	MarkStarted(ctx context.Context, jobID uuid.UUID, pid int, startTime time.Time) error

	// AppendLog persists one ordered chunk of a job's captured output.
	AppendLog(ctx context.Context, jobID uuid.UUID, stream string, chunkIndex int64, text string) error

	// Complete transitions a running job to its terminal successful/failed
	// status, recording its exit code and result or error document.
	Complete(ctx context.Context, jobID uuid.UUID, status Status, exitCode int, resultJSON, errorJSON json.RawMessage) error

	// Dismiss cancels a job that is accepted or running.
	Dismiss(ctx context.Context, jobID uuid.UUID) error

	// Get retrieves a single job by id.
	Get(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// List retrieves jobs matching filter, most recently submitted first.
	List(ctx context.Context, filter ListFilter) ([]*Job, error)

	// Logs retrieves a job's captured output for one stream, in chunk order.
	Logs(ctx context.Context, jobID uuid.UUID, stream string) ([]JobLogChunk, error)

	// HealthCheck verifies the storage backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
