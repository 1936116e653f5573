// Package api provides the HTTP API server implementation for the ripple
// engine: a thin façade over the Job Store and the Process Registry.
package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/floodlib/ripple-engine/internal/jobstore"
)

type (
	// EnqueueResponse is the body of a successful POST /processes/{name}/execution.
	EnqueueResponse struct {
		JobID string `json:"jobID"` //nolint:tagliatelle
	}

	// JobStatusResponse is the shape of GET /jobs/{id} and the elements of GET /jobs.
	JobStatusResponse struct {
		JobID     string          `json:"jobID"` //nolint:tagliatelle
		Status    string          `json:"status"`
		ProcessID string          `json:"processID"` //nolint:tagliatelle
		Created   time.Time       `json:"created"`
		Started   *time.Time      `json:"started,omitempty"`
		Finished  *time.Time      `json:"finished,omitempty"`
		Updated   time.Time       `json:"updated"`
		ExitCode  *int            `json:"exitCode,omitempty"` //nolint:tagliatelle
		Traceback json.RawMessage `json:"traceback,omitempty"`
	}

	// JobMetadataResponse is the body of GET /jobs/{id}/metadata.
	JobMetadataResponse struct {
		JobID      string     `json:"jobID"` //nolint:tagliatelle
		Process    string     `json:"process"`
		SubmitTime time.Time  `json:"submitTime"` //nolint:tagliatelle
		StartTime  *time.Time `json:"startTime,omitempty"` //nolint:tagliatelle
		EndTime    *time.Time `json:"endTime,omitempty"`   //nolint:tagliatelle
		ExitCode   *int       `json:"exitCode,omitempty"`  //nolint:tagliatelle
		ChildPID   *int       `json:"childPid,omitempty"`  //nolint:tagliatelle
	}

	// JobLogsResponse is the body of GET /jobs/{id}/logs: the captured
	// stdout and stderr streams, each concatenated in append order.
	JobLogsResponse struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}

	// PingResponse is the body of GET /ping.
	PingResponse struct {
		Status string `json:"status"`
	}
)

// jobStatusResponse converts a jobstore.Job into its HTTP representation.
// When includeTraceback is false, a failed job's error document is omitted
// from the response (GET /jobs/{id} only includes it when ?tb=true).
func jobStatusResponse(job *jobstore.Job, includeTraceback bool) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     job.JobID.String(),
		Status:    string(job.Status),
		ProcessID: job.Process,
		Created:   job.SubmitTime,
		Started:   job.StartTime,
		Finished:  job.EndTime,
		Updated:   job.UpdatedAt,
		ExitCode:  job.ExitCode,
	}

	if includeTraceback && len(job.ErrorJSON) > 0 {
		resp.Traceback = job.ErrorJSON
	}

	return resp
}

func jobMetadataResponse(job *jobstore.Job) JobMetadataResponse {
	return JobMetadataResponse{
		JobID:      job.JobID.String(),
		Process:    job.Process,
		SubmitTime: job.SubmitTime,
		StartTime:  job.StartTime,
		EndTime:    job.EndTime,
		ExitCode:   job.ExitCode,
		ChildPID:   job.ChildPID,
	}
}

func parseJobID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}
