package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/floodlib/ripple-engine/internal/config"
)

// PostgresStore implements Store with a PostgreSQL backend, claiming jobs
// with SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never race
// for the same row.
type PostgresStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPostgresStore wraps an existing connection pool as a Store.
func NewPostgresStore(conn *Connection) *PostgresStore {
	return &PostgresStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}
}

// NewPostgresStoreFromDB wraps an already-open, already-migrated *sql.DB as
// a Store. Used by integration tests that provision their database through
// testcontainers rather than through Config/NewConnection.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return NewPostgresStore(&Connection{db})
}

// Close closes the underlying connection pool. Safe to call multiple times.
func (s *PostgresStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}

	return nil
}

// HealthCheck verifies the database connection is reachable.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Enqueue inserts a new job in StatusAccepted.
func (s *PostgresStore) Enqueue(ctx context.Context, process string, input json.RawMessage) (uuid.UUID, error) {
	jobID := uuid.New()
	now := time.Now().UTC()

	if input == nil {
		input = json.RawMessage("{}")
	}

	query := `
		INSERT INTO jobs (job_id, process, submit_time, status, input_json, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.conn.ExecContext(ctx, query, jobID, process, now, StatusAccepted, input, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return jobID, nil
}

// Claim atomically picks the oldest accepted job and transitions it to
// StatusRunning inside a single transaction, so a concurrently claiming
// worker either skips the locked row or sees it already running.
func (s *PostgresStore) Claim(ctx context.Context) (*Job, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	const selectQuery = `
		SELECT job_id, process, submit_time, status, child_pid, start_time, end_time,
		       exit_code, input_json, result_json, error_json, updated_at
		FROM jobs
		WHERE status = $1
		ORDER BY submit_time
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`

	job, err := scanJob(tx.QueryRowContext(ctx, selectQuery, StatusAccepted))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}

		return nil, fmt.Errorf("failed to select claimable job: %w", err)
	}

	now := time.Now().UTC()

	const updateQuery = `
		UPDATE jobs SET status = $1, updated_at = $2 WHERE job_id = $3
	`

	if _, err := tx.ExecContext(ctx, updateQuery, StatusRunning, now, job.JobID); err != nil {
		return nil, fmt.Errorf("failed to mark job running: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	job.Status = StatusRunning
	job.UpdatedAt = now

	return job, nil
}

// MarkStarted records the supervisor's child process id and start time.
func (s *PostgresStore) MarkStarted(ctx context.Context, jobID uuid.UUID, pid int, startTime time.Time) error {
	query := `
		UPDATE jobs SET child_pid = $1, start_time = $2, updated_at = $3 WHERE job_id = $4
	`

	result, err := s.conn.ExecContext(ctx, query, pid, startTime.UTC(), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}

	return requireRowAffected(result, ErrJobNotFound)
}

// AppendLog persists one ordered chunk of captured stdout or stderr.
func (s *PostgresStore) AppendLog(ctx context.Context, jobID uuid.UUID, stream string, chunkIndex int64, text string) error {
	query := `
		INSERT INTO job_logs (job_id, stream, chunk_index, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, stream, chunk_index) DO UPDATE SET text = EXCLUDED.text
	`

	_, err := s.conn.ExecContext(ctx, query, jobID, stream, chunkIndex, text)
	if err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}

	return nil
}

// Complete transitions a running job to a terminal status, recording its
// exit code and result or error document.
func (s *PostgresStore) Complete(
	ctx context.Context,
	jobID uuid.UUID,
	status Status,
	exitCode int,
	resultJSON, errorJSON json.RawMessage,
) error {
	if status != StatusSuccessful && status != StatusFailed {
		return fmt.Errorf("%w: Complete called with non-terminal status %s", ErrInvalidTransition, status)
	}

	now := time.Now().UTC()

	query := `
		UPDATE jobs
		SET status = $1, exit_code = $2, result_json = $3, error_json = $4, end_time = $5, updated_at = $6
		WHERE job_id = $7 AND status = $8
	`

	result, err := s.conn.ExecContext(
		ctx, query, status, exitCode, nullableJSON(resultJSON), nullableJSON(errorJSON), now, now, jobID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return requireRowAffected(result, fmt.Errorf("%w: job %s is not running", ErrInvalidTransition, jobID))
}

// Dismiss cancels a job that is accepted or running.
func (s *PostgresStore) Dismiss(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now().UTC()

	query := `
		UPDATE jobs
		SET status = $1, end_time = $2, exit_code = $3, updated_at = $4
		WHERE job_id = $5 AND status IN ($6, $7)
	`

	result, err := s.conn.ExecContext(ctx, query, StatusDismissed, now, -1, now, jobID, StatusAccepted, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to dismiss job: %w", err)
	}

	return requireRowAffected(result, fmt.Errorf("%w: job %s is not dismissible", ErrInvalidTransition, jobID))
}

// Get retrieves a single job by id.
func (s *PostgresStore) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	query := `
		SELECT job_id, process, submit_time, status, child_pid, start_time, end_time,
		       exit_code, input_json, result_json, error_json, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	job, err := scanJob(s.conn.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}

		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// List retrieves jobs matching filter, most recently submitted first.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `
		SELECT job_id, process, submit_time, status, child_pid, start_time, end_time,
		       exit_code, input_json, result_json, error_json, updated_at
		FROM jobs
		WHERE ($1 = '' OR process = $1) AND ($2 = '' OR status = $2)
		ORDER BY submit_time DESC
	`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, filter.Process, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var jobs []*Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	if jobs == nil {
		jobs = []*Job{}
	}

	return jobs, nil
}

// Logs retrieves a job's captured output for one stream, in chunk order.
func (s *PostgresStore) Logs(ctx context.Context, jobID uuid.UUID, stream string) ([]JobLogChunk, error) {
	query := `
		SELECT job_id, stream, chunk_index, text
		FROM job_logs
		WHERE job_id = $1 AND stream = $2
		ORDER BY chunk_index
	`

	rows, err := s.conn.QueryContext(ctx, query, jobID, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to query job logs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var chunks []JobLogChunk

	for rows.Next() {
		var chunk JobLogChunk

		if err := rows.Scan(&chunk.JobID, &chunk.Stream, &chunk.ChunkIndex, &chunk.Text); err != nil {
			return nil, fmt.Errorf("failed to scan log chunk: %w", err)
		}

		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return chunks, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job        Job
		childPID   sql.NullInt64
		startTime  sql.NullTime
		endTime    sql.NullTime
		exitCode   sql.NullInt64
		resultJSON []byte
		errorJSON  []byte
	)

	err := row.Scan(
		&job.JobID,
		&job.Process,
		&job.SubmitTime,
		&job.Status,
		&childPID,
		&startTime,
		&endTime,
		&exitCode,
		&job.InputJSON,
		&resultJSON,
		&errorJSON,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if childPID.Valid {
		pid := int(childPID.Int64)
		job.ChildPID = &pid
	}

	if startTime.Valid {
		t := startTime.Time
		job.StartTime = &t
	}

	if endTime.Valid {
		t := endTime.Time
		job.EndTime = &t
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		job.ExitCode = &code
	}

	if resultJSON != nil {
		job.ResultJSON = resultJSON
	}

	if errorJSON != nil {
		job.ErrorJSON = errorJSON
	}

	return &job, nil
}

func requireRowAffected(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFoundErr
	}

	return nil
}

// nullableJSON converts an empty/nil json.RawMessage into a typed SQL NULL
// so result_json/error_json stay NULL rather than storing the JSON literal "null".
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}
