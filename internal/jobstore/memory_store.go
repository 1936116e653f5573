package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for unit tests and for the single-node
// development mode (`ripple-engine start --dev`). It applies the
// same status state machine as PostgresStore but never touches a database.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*Job
	logs  map[uuid.UUID]map[string][]JobLogChunk
	order []uuid.UUID
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*Job),
		logs: make(map[uuid.UUID]map[string][]JobLogChunk),
	}
}

// Close is a no-op; MemoryStore holds no external resources.
func (s *MemoryStore) Close() error { return nil }

// HealthCheck always succeeds; MemoryStore has no external dependency to fail.
func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }

// Enqueue inserts a new job in StatusAccepted.
func (s *MemoryStore) Enqueue(_ context.Context, process string, input json.RawMessage) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input == nil {
		input = json.RawMessage("{}")
	}

	now := time.Now().UTC()
	jobID := uuid.New()

	s.jobs[jobID] = &Job{
		JobID:      jobID,
		Process:    process,
		SubmitTime: now,
		Status:     StatusAccepted,
		InputJSON:  input,
		UpdatedAt:  now,
	}
	s.order = append(s.order, jobID)

	return jobID, nil
}

// Claim picks the oldest accepted job by submit time and transitions it to running.
func (s *MemoryStore) Claim(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *Job

	for _, jobID := range s.order {
		job := s.jobs[jobID]
		if job.Status != StatusAccepted {
			continue
		}

		if oldest == nil || job.SubmitTime.Before(oldest.SubmitTime) {
			oldest = job
		}
	}

	if oldest == nil {
		return nil, ErrNoJobAvailable
	}

	oldest.Status = StatusRunning
	oldest.UpdatedAt = time.Now().UTC()

	clone := *oldest

	return &clone, nil
}

// MarkStarted records the supervisor's child process id and start time.
func (s *MemoryStore) MarkStarted(_ context.Context, jobID uuid.UUID, pid int, startTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	t := startTime.UTC()
	job.ChildPID = &pid
	job.StartTime = &t
	job.UpdatedAt = time.Now().UTC()

	return nil
}

// AppendLog persists one ordered chunk of captured stdout or stderr.
func (s *MemoryStore) AppendLog(_ context.Context, jobID uuid.UUID, stream string, chunkIndex int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}

	if s.logs[jobID] == nil {
		s.logs[jobID] = make(map[string][]JobLogChunk)
	}

	s.logs[jobID][stream] = append(s.logs[jobID][stream], JobLogChunk{
		JobID:      jobID,
		Stream:     stream,
		ChunkIndex: chunkIndex,
		Text:       text,
	})

	return nil
}

// Complete transitions a running job to a terminal status.
func (s *MemoryStore) Complete(
	_ context.Context,
	jobID uuid.UUID,
	status Status,
	exitCode int,
	resultJSON, errorJSON json.RawMessage,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	if err := ValidateStateTransition(job.Status, status); err != nil {
		return err
	}

	now := time.Now().UTC()
	job.Status = status
	job.ExitCode = &exitCode
	job.ResultJSON = resultJSON
	job.ErrorJSON = errorJSON
	job.EndTime = &now
	job.UpdatedAt = now

	return nil
}

// Dismiss cancels a job that is accepted or running.
func (s *MemoryStore) Dismiss(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrTerminalStateImmutable, jobID, job.Status)
	}

	if err := ValidateStateTransition(job.Status, StatusDismissed); err != nil {
		return err
	}

	now := time.Now().UTC()
	exitCode := -1
	job.Status = StatusDismissed
	job.EndTime = &now
	job.ExitCode = &exitCode
	job.UpdatedAt = now

	return nil
}

// Get retrieves a single job by id.
func (s *MemoryStore) Get(_ context.Context, jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	clone := *job

	return &clone, nil
}

// List retrieves jobs matching filter, most recently submitted first.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*Job, 0, len(s.jobs))

	for _, job := range s.jobs {
		if filter.Process != "" && job.Process != filter.Process {
			continue
		}

		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		clone := *job
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmitTime.After(matched[j].SubmitTime)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// Logs retrieves a job's captured output for one stream, in chunk order.
func (s *MemoryStore) Logs(_ context.Context, jobID uuid.UUID, stream string) ([]JobLogChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}

	chunks := s.logs[jobID][stream]
	out := make([]JobLogChunk, len(chunks))
	copy(out, chunks)

	return out, nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
