// Package jobstore implements the durable job queue: a PostgreSQL-backed
// table of jobs claimed by worker goroutines and driven through a small
// status state machine from submission to a terminal outcome.
package jobstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is a job's position in its lifecycle.
type Status string

// The closed set of job statuses.
const (
	StatusAccepted   Status = "accepted"
	StatusRunning    Status = "running"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusDismissed  Status = "dismissed"
)

// IsTerminal reports whether a job in this status will never transition again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusDismissed:
		return true
	default:
		return false
	}
}

// Job is a unit of work against the process registry: a process name plus
// its validated input, tracked from enqueue through a terminal status.
type Job struct {
	JobID      uuid.UUID
	Process    string
	SubmitTime time.Time
	Status     Status
	ChildPID   *int
	StartTime  *time.Time
	EndTime    *time.Time
	ExitCode   *int
	InputJSON  json.RawMessage
	ResultJSON json.RawMessage
	ErrorJSON  json.RawMessage
	UpdatedAt  time.Time
}

// JobLogChunk is one ordered slice of a job's captured stdout or stderr.
type JobLogChunk struct {
	JobID      uuid.UUID
	Stream     string
	ChunkIndex int64
	Text       string
}

// The two log streams a supervisor captures.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// ListFilter narrows List to jobs matching the given fields. A zero-value
// field is unconstrained.
type ListFilter struct {
	Process string
	Status  Status
	Limit   int
}
