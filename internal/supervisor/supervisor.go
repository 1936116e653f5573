// Package supervisor spawns, tracks, and cancels the one child process per
// job the worker pool dispatches. Each job runs out-of-process so a hung or
// resource-leaking solver invocation cannot take down the parent, and so
// dismissal is observable at OS granularity (SIGTERM, then SIGKILL after a
// grace window).
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/metrics"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// logByteCap bounds how many bytes of a single stream the supervisor
// buffers in memory per job before it starts dropping the oldest bytes;
// the cap protects only in-memory buffering; nothing already persisted to
// the job store is discarded.
const logByteCap = 64 * 1024

// maxByteCapPerChunk is the chunk size used when appending captured output
// to the job store; output is chunked by line, capped at this size so a
// single very long line cannot block on one oversized write.
const maxByteCapPerChunk = 8 * 1024

// CommandFactory builds the exec.Cmd that will run one job's child process.
// The production wiring uses a factory that re-execs the current binary
// with `run-job --job-id <id>` (cmd/ripple-engine's hidden subcommand);
// tests substitute a factory that runs a small fixture script.
type CommandFactory func(ctx context.Context, job *jobstore.Job) *exec.Cmd

// GraceWindow is how long Cancel waits after SIGTERM before sending SIGKILL.
const GraceWindow = 10 * time.Second

// Supervisor runs one job at a time per call to Run, tracking it so a
// concurrent Cancel can signal its child process.
type Supervisor struct {
	store       jobstore.Store
	newCommand  CommandFactory
	logger      *slog.Logger
	graceWindow time.Duration
	metrics     *metrics.Registry

	mu        sync.Mutex
	cancelers map[uuid.UUID]func()
}

// New constructs a Supervisor. grace, if zero, defaults to GraceWindow.
func New(store jobstore.Store, newCommand CommandFactory, logger *slog.Logger, grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = GraceWindow
	}

	return &Supervisor{
		store:       store,
		newCommand:  newCommand,
		logger:      logger,
		graceWindow: grace,
		cancelers:   make(map[uuid.UUID]func()),
	}
}

// Run spawns job's child process, streams its output into the job store,
// and writes the terminal result back via Complete. Run blocks until the
// child exits or is canceled; it implements worker.Runner.
func (s *Supervisor) Run(ctx context.Context, job *jobstore.Job) {
	childCtx, cancel := context.WithCancel(ctx)
	s.registerCanceler(job.JobID, cancel)
	defer s.unregisterCanceler(job.JobID)
	defer cancel()

	if s.metrics != nil {
		s.metrics.JobStarted()
		defer s.metrics.JobFinished()

		started := now()
		defer func() { s.metrics.ObserveStageDuration(job.Process, time.Since(started)) }()
	}

	cmd := s.newCommand(childCtx, job)

	// exec.CommandContext's default Cancel kills the child outright; send
	// SIGTERM instead so cancelChild's grace window applies before SIGKILL.
	if cmd.Cancel != nil {
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		s.fail(ctx, job, stageerr.Internal(err.Error(), "failed to open stdout pipe"))

		return
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		s.fail(ctx, job, stageerr.Internal(err.Error(), "failed to open stderr pipe"))

		return
	}

	if err := cmd.Start(); err != nil {
		s.fail(ctx, job, stageerr.Internal(err.Error(), "failed to start job process"))

		return
	}

	if err := s.store.MarkStarted(ctx, job.JobID, cmd.Process.Pid, now()); err != nil && s.logger != nil {
		s.logger.Error("failed to record job start", slog.String("job_id", job.JobID.String()), slog.String("error", err.Error()))
	}

	var wg sync.WaitGroup

	stdoutCapture := newStreamCapture(job.JobID, jobstore.StreamStdout, s.store, s.logger)
	stderrCapture := newStreamCapture(job.JobID, jobstore.StreamStderr, s.store, s.logger)

	wg.Add(2)

	go func() {
		defer wg.Done()

		stdoutCapture.drain(ctx, stdoutPipe)
	}()

	go func() {
		defer wg.Done()

		stderrCapture.drain(ctx, stderrPipe)
	}()

	waitErr := make(chan error, 1)

	go func() { waitErr <- cmd.Wait() }()

	var runErr error

	select {
	case runErr = <-waitErr:
	case <-childCtx.Done():
		s.cancelChild(cmd)
		runErr = <-waitErr
	}

	wg.Wait()

	s.finish(ctx, job, cmd, runErr, stdoutCapture.lastLine(), stderrCapture.lastLine(), childCtx.Err() != nil)
}

// SetMetrics attaches the service's metrics registry. When set, Run tracks
// the running-jobs gauge and reports stage duration and outcome counters.
func (s *Supervisor) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// Cancel signals job's child process to terminate, if it is currently running.
func (s *Supervisor) Cancel(jobID uuid.UUID) {
	s.mu.Lock()
	cancel, ok := s.cancelers[jobID]
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

func (s *Supervisor) registerCanceler(jobID uuid.UUID, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelers[jobID] = cancel
}

func (s *Supervisor) unregisterCanceler(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cancelers, jobID)
}

func (s *Supervisor) cancelChild(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.graceWindow):
		_ = cmd.Process.Kill()
	}
}

func (s *Supervisor) finish(ctx context.Context, job *jobstore.Job, cmd *exec.Cmd, runErr error, lastStdout, lastStderr string, wasCanceled bool) {
	jobID := job.JobID

	if wasCanceled {
		if err := s.store.Complete(ctx, jobID, jobstore.StatusFailed, -1, nil, mustMarshal(&stageerr.StageError{
			Kind:    stageerr.KindDismissed,
			Message: "job was dismissed",
		})); err != nil && s.logger != nil {
			s.logger.Error("failed to record dismissed job completion", slog.String("job_id", jobID.String()), slog.String("error", err.Error()))
		}

		s.reportCompletion(job.Process, jobstore.StatusFailed)

		return
	}

	exitCode := 0

	var exitErr *exec.ExitError
	if runErr != nil {
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			s.fail(ctx, job, stageerr.Internal(runErr.Error(), "job process failed to run"))

			return
		}
	}

	if exitCode == 0 {
		resultJSON, err := parseFinalLine(lastStdout)
		if err != nil {
			resultJSON = mustMarshal(map[string]string{"raw": lastStdout})
		}

		if err := s.store.Complete(ctx, jobID, jobstore.StatusSuccessful, exitCode, resultJSON, nil); err != nil && s.logger != nil {
			s.logger.Error("failed to record successful job completion", slog.String("job_id", jobID.String()), slog.String("error", err.Error()))
		}

		s.reportCompletion(job.Process, jobstore.StatusSuccessful)

		return
	}

	errorJSON, err := parseFinalLine(lastStderr)
	if err != nil {
		errorJSON = mustMarshal(&stageerr.StageError{
			Kind:    stageerr.KindInternal,
			Message: fmt.Sprintf("job process exited %d with unparsable error output", exitCode),
		})
	}

	if err := s.store.Complete(ctx, jobID, jobstore.StatusFailed, exitCode, nil, errorJSON); err != nil && s.logger != nil {
		s.logger.Error("failed to record failed job completion", slog.String("job_id", jobID.String()), slog.String("error", err.Error()))
	}

	s.reportCompletion(job.Process, jobstore.StatusFailed)
}

func (s *Supervisor) fail(ctx context.Context, job *jobstore.Job, stageErr *stageerr.StageError) {
	if err := s.store.Complete(ctx, job.JobID, jobstore.StatusFailed, -1, nil, mustMarshal(stageErr)); err != nil && s.logger != nil {
		s.logger.Error("failed to record job failure", slog.String("job_id", job.JobID.String()), slog.String("error", err.Error()))
	}

	s.reportCompletion(job.Process, jobstore.StatusFailed)
}

// reportCompletion records the job-outcome counter, if a metrics registry is attached.
func (s *Supervisor) reportCompletion(process string, status jobstore.Status) {
	if s.metrics != nil {
		s.metrics.JobCompleted(process, string(status))
	}
}

// parseFinalLine extracts the last non-empty line of captured output and
// parses it as the job's result or error document.
func parseFinalLine(captured string) (json.RawMessage, error) {
	line := lastNonEmptyLine(captured)
	if line == "" {
		return nil, fmt.Errorf("no output captured")
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("final line is not valid JSON: %w", err)
	}

	return raw, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}

	return ""
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"kind":"Internal","message":"failed to marshal result"}`)
	}

	return data
}

// streamCapture persists one job's one stream to the job store in chunks,
// remembering the last byteCap bytes in memory so the supervisor can parse
// the child's final result/error line without re-reading the store.
type streamCapture struct {
	jobID  uuid.UUID
	stream string
	store  jobstore.Store
	logger *slog.Logger

	mu      sync.Mutex
	tail    strings.Builder
	chunkNo int64
}

func newStreamCapture(jobID uuid.UUID, stream string, store jobstore.Store, logger *slog.Logger) *streamCapture {
	return &streamCapture{jobID: jobID, stream: stream, store: store, logger: logger}
}

func (c *streamCapture) drain(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxByteCapPerChunk)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if len(data) >= maxByteCapPerChunk && bytes.IndexByte(data[:maxByteCapPerChunk], '\n') < 0 {
			return maxByteCapPerChunk, data[:maxByteCapPerChunk], nil
		}

		return bufio.ScanLines(data, atEOF)
	})

	for scanner.Scan() {
		line := scanner.Text()

		c.mu.Lock()
		c.tail.WriteString(line)
		c.tail.WriteString("\n")
		c.truncateLocked()
		chunkIndex := c.chunkNo
		c.chunkNo++
		c.mu.Unlock()

		if err := c.store.AppendLog(ctx, c.jobID, c.stream, chunkIndex, line); err != nil && c.logger != nil {
			c.logger.Error("failed to append job log chunk",
				slog.String("job_id", c.jobID.String()), slog.String("stream", c.stream), slog.String("error", err.Error()))
		}
	}
}

func (c *streamCapture) truncateLocked() {
	if c.tail.Len() <= logByteCap {
		return
	}

	excess := c.tail.Len() - logByteCap
	kept := c.tail.String()[excess:]
	c.tail.Reset()
	c.tail.WriteString(kept)
}

func (c *streamCapture) lastLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tail.String()
}

func now() time.Time {
	return time.Now().UTC()
}
