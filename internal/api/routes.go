package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// handleEnqueue handles POST /processes/{name}/execution. It validates the
// request body against the process's descriptor and enqueues a job.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	descriptor, err := s.registry.Get(name)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, NotFound(err.Error()))

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("failed to read request body"))

		return
	}

	raw := json.RawMessage(body)
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	if _, err := descriptor.Validate(nil, raw); err != nil {
		s.writeStageError(w, r, err, http.StatusBadRequest)

		return
	}

	jobID, err := s.store.Enqueue(r.Context(), name, raw)
	if err != nil {
		if errors.Is(err, stageerr.ErrUnknownProcess) {
			WriteErrorResponse(w, r, s.logger, NotFound(err.Error()))

			return
		}

		if errors.Is(err, stageerr.ErrInvalidInput) {
			WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

			return
		}

		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to enqueue job"))

		return
	}

	if s.metrics != nil {
		s.metrics.JobEnqueued(name)
	}

	writeJSON(w, s.logger, http.StatusCreated, EnqueueResponse{JobID: jobID.String()})
}

// handleGetJob handles GET /jobs/{id}. It returns the traceback field only
// when the request carries ?tb=true, per spec.md §4.5.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid job id"))

		return
	}

	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		s.writeJobLookupError(w, r, err)

		return
	}

	includeTraceback := r.URL.Query().Get("tb") == "true"

	writeJSON(w, s.logger, http.StatusOK, jobStatusResponse(job, includeTraceback))
}

// handleListJobs handles GET /jobs, optionally filtered by ?process= and ?status=.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobstore.ListFilter{
		Process: r.URL.Query().Get("process"),
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filter.Status = jobstore.Status(statusParam)
	}

	jobs, err := s.store.List(r.Context(), filter)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to list jobs"))

		return
	}

	resp := make([]JobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, jobStatusResponse(job, false))
	}

	writeJSON(w, s.logger, http.StatusOK, resp)
}

// handleGetResults handles GET /jobs/{id}/results: the result document when
// the job is terminal-successful, 409 otherwise.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid job id"))

		return
	}

	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		s.writeJobLookupError(w, r, err)

		return
	}

	if job.Status != jobstore.StatusSuccessful {
		WriteErrorResponse(w, r, s.logger,
			Conflict("job has not reached a terminal-successful state: status is "+string(job.Status)))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if len(job.ResultJSON) == 0 {
		_, _ = w.Write([]byte("{}"))

		return
	}

	_, _ = w.Write(job.ResultJSON)
}

// handleGetMetadata handles GET /jobs/{id}/metadata.
func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid job id"))

		return
	}

	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		s.writeJobLookupError(w, r, err)

		return
	}

	writeJSON(w, s.logger, http.StatusOK, jobMetadataResponse(job))
}

// handleGetLogs handles GET /jobs/{id}/logs: the concatenated captured output.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid job id"))

		return
	}

	if _, err := s.store.Get(r.Context(), jobID); err != nil {
		s.writeJobLookupError(w, r, err)

		return
	}

	stdout, err := s.store.Logs(r.Context(), jobID, jobstore.StreamStdout)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to read stdout logs"))

		return
	}

	stderr, err := s.store.Logs(r.Context(), jobID, jobstore.StreamStderr)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to read stderr logs"))

		return
	}

	writeJSON(w, s.logger, http.StatusOK, JobLogsResponse{
		Stdout: concatenateLogChunks(stdout),
		Stderr: concatenateLogChunks(stderr),
	})
}

// handleDismiss handles DELETE /jobs/{id}: dismisses an accepted or running
// job. If the job is currently running, the supervisor is signaled to
// terminate the child process; the response does not wait for that to happen.
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid job id"))

		return
	}

	if err := s.store.Dismiss(r.Context(), jobID); err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			WriteErrorResponse(w, r, s.logger, NotFound("job not found"))

			return
		}

		WriteErrorResponse(w, r, s.logger, Conflict(err.Error()))

		return
	}

	if s.supervisor != nil {
		s.supervisor.Cancel(jobID)
	}

	w.WriteHeader(http.StatusOK)
}

// handlePing handles GET /ping.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, PingResponse{Status: "healthy"})
}

func (s *Server) writeJobLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, jobstore.ErrJobNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound("job not found"))

		return
	}

	WriteErrorResponse(w, r, s.logger, InternalServerError("failed to read job"))
}

// writeStageError maps a *stageerr.StageError returned from input validation
// into an RFC 7807 response, defaulting to statusOnUnknown for stage errors
// whose kind isn't one of the codes spec.md §4.5 names explicitly.
func (s *Server) writeStageError(w http.ResponseWriter, r *http.Request, err error, statusOnUnknown int) {
	stageErr := stageerr.As(err)

	switch stageErr.Kind {
	case stageerr.KindUnknownProcess:
		WriteErrorResponse(w, r, s.logger, NotFound(stageErr.Message))
	case stageerr.KindInvalidInput, stageerr.KindPrecondition:
		WriteErrorResponse(w, r, s.logger, BadRequest(stageErr.Message))
	default:
		WriteErrorResponse(w, r, s.logger, NewProblemDetail(statusOnUnknown, "Request Failed", stageErr.Message))
	}
}

func writeJSON(w http.ResponseWriter, logger interface {
	Error(msg string, args ...any)
}, status int, body any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response body", "error", err.Error())
	}
}

func concatenateLogChunks(chunks []jobstore.JobLogChunk) string {
	var b strings.Builder

	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}

	return b.String()
}
