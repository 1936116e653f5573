package jobstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/jobstore"
)

func TestMemoryStore_EnqueueAndGet(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "extract_submodel", json.RawMessage(`{"reach_id":"1010"}`))
	require.NoError(t, err)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusAccepted, job.Status)
	assert.Equal(t, "extract_submodel", job.Process)
	assert.JSONEq(t, `{"reach_id":"1010"}`, string(job.InputJSON))
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()

	_, err := store.Get(context.Background(), mustRandomUUID(t))
	assert.ErrorIs(t, err, jobstore.ErrJobNotFound)
}

func TestMemoryStore_ClaimOrdersByFIFO(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	first, err := store.Enqueue(ctx, "ras_to_gpkg", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = store.Enqueue(ctx, "conflate_model", json.RawMessage(`{}`))
	require.NoError(t, err)

	claimed, err := store.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, claimed.JobID)
	assert.Equal(t, jobstore.StatusRunning, claimed.Status)
}

func TestMemoryStore_Claim_NoJobAvailable(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := jobstore.NewMemoryStore()

	_, err := store.Claim(context.Background())
	assert.ErrorIs(t, err, jobstore.ErrNoJobAvailable)
}

func TestMemoryStore_CompleteRejectsNonRunningJob(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "run_known_wse", json.RawMessage(`{}`))
	require.NoError(t, err)

	err = store.Complete(ctx, jobID, jobstore.StatusSuccessful, 0, json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, jobstore.ErrInvalidTransition)
}

func TestMemoryStore_CompleteSuccessful(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "run_known_wse", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = store.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, store.MarkStarted(ctx, jobID, 4242, fixedTime(t)))

	resultJSON := json.RawMessage(`{"rating_curve_db":"curves.sqlite"}`)
	require.NoError(t, store.Complete(ctx, jobID, jobstore.StatusSuccessful, 0, resultJSON, nil))

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusSuccessful, job.Status)
	require.NotNil(t, job.ExitCode)
	assert.Equal(t, 0, *job.ExitCode)
	require.NotNil(t, job.ChildPID)
	assert.Equal(t, 4242, *job.ChildPID)
	assert.JSONEq(t, string(resultJSON), string(job.ResultJSON))
}

func TestMemoryStore_DismissAcceptedJob(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "create_fim_lib", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.Dismiss(ctx, jobID))

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusDismissed, job.Status)
}

func TestMemoryStore_DismissTerminalJobFails(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "create_fim_lib", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.Dismiss(ctx, jobID))

	err = store.Dismiss(ctx, jobID)
	assert.ErrorIs(t, err, jobstore.ErrTerminalStateImmutable)
}

func TestMemoryStore_AppendLogAndLogs(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	jobID, err := store.Enqueue(ctx, "create_ras_terrain", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.AppendLog(ctx, jobID, jobstore.StreamStdout, 0, "starting terrain build\n"))
	require.NoError(t, store.AppendLog(ctx, jobID, jobstore.StreamStdout, 1, "terrain build complete\n"))

	chunks, err := store.Logs(ctx, jobID, jobstore.StreamStdout)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "starting terrain build\n", chunks[0].Text)
	assert.Equal(t, "terrain build complete\n", chunks[1].Text)
}

func TestMemoryStore_ListFiltersByProcessAndStatus(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := jobstore.NewMemoryStore()

	_, err := store.Enqueue(ctx, "ras_to_gpkg", json.RawMessage(`{}`))
	require.NoError(t, err)

	otherID, err := store.Enqueue(ctx, "conflate_model", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = store.Claim(ctx) // claims ras_to_gpkg (FIFO oldest)
	require.NoError(t, err)

	jobs, err := store.List(ctx, jobstore.ListFilter{Process: "conflate_model"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, otherID, jobs[0].JobID)

	accepted, err := store.List(ctx, jobstore.ListFilter{Status: jobstore.StatusAccepted})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, jobstore.StatusAccepted, accepted[0].Status)
}
