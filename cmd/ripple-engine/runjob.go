package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/floodlib/ripple-engine/internal/config"
	"github.com/floodlib/ripple-engine/internal/datasource"
	"github.com/floodlib/ripple-engine/internal/events"
	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/solver"
	"github.com/floodlib/ripple-engine/internal/stageerr"
)

var runJobID string

// runJobCmd is the process image the supervisor execs for each job. It is
// never meant to be invoked by hand, so it carries no Short/Long text and
// is kept out of the help listing by Hidden.
var runJobCmd = &cobra.Command{
	Use:    "run-job",
	Hidden: true,
	RunE:   runJob,
}

func init() {
	runJobCmd.Flags().StringVar(&runJobID, "job-id", "", "job id to execute (required)")
	_ = runJobCmd.MarkFlagRequired("job-id")
}

// reachLockFileName is the advisory lock file a reach submodel directory
// gets, acquired with flock.TryLock so two jobs can never run stages
// against the same submodel concurrently (spec.md §9).
const reachLockFileName = ".ripple-reach.lock"

// runJob opens the job store, looks the job up by id, dispatches its
// process through the registry, and writes exactly one JSON line to
// stdout on success or stderr on failure before returning. The supervisor
// parses that line as the job's result or error document and reads the
// process exit code to decide which.
func runJob(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	jobID, err := uuid.Parse(runJobID)
	if err != nil {
		return writeFailure(stageerr.New(stageerr.KindInvalidInput, "malformed job id %q: %s", runJobID, err.Error()))
	}

	store, err := openJobStore(logger)
	if err != nil {
		return writeFailure(stageerr.Internal(err.Error(), "failed to open job store"))
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	job, err := store.Get(ctx, jobID)
	if err != nil {
		return writeFailure(stageerr.Internal(err.Error(), "failed to load job %s", jobID))
	}

	reg := buildRunJobRegistry()

	descriptor, err := reg.Get(job.Process)
	if err != nil {
		return writeFailure(stageerr.As(err))
	}

	fields, err := descriptor.Validate(nil, job.InputJSON)
	if err != nil {
		return writeFailure(stageerr.As(err))
	}

	release, err := acquireReachLock(fields)
	if err != nil {
		return writeFailure(stageerr.As(err))
	}
	defer release()

	env := buildStageEnv(ctx, logger)

	result, err := descriptor.Handler(env, job.InputJSON)
	if err != nil {
		return writeFailure(stageerr.As(err))
	}

	return writeSuccess(result)
}

// buildRunJobRegistry mirrors the `start` subcommand's registry
// construction. The job runner rebuilds it independently because it runs
// in its own process image with no shared state from the parent.
func buildRunJobRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterAll(pipeline.Descriptors())

	if overrides, err := registry.LoadOverridesFromEnv(); err == nil {
		reg.Apply(overrides)
	}

	return reg
}

// acquireReachLock takes the reach submodel's advisory lock when the job's
// input document names one via a "reach_root" field. Processes that don't
// operate on a reach submodel (e.g. ras_to_gpkg) have no such field and run
// unlocked.
func acquireReachLock(fields map[string]any) (func(), error) {
	reachRoot, ok := fields["reach_root"].(string)
	if !ok || reachRoot == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(reachRoot, 0o750); err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to prepare reach submodel directory %q", reachRoot)
	}

	lock := flock.New(filepath.Join(reachRoot, reachLockFileName))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, stageerr.Internal(err.Error(), "failed to acquire reach submodel lock for %q", reachRoot)
	}

	if !locked {
		return nil, stageerr.New(stageerr.KindReachBusy, "reach submodel %q is locked by another job", reachRoot)
	}

	return func() { _ = lock.Unlock() }, nil
}

// buildStageEnv constructs the StageEnv a stage handler runs in. No
// production NetworkProvider or DemProvider exists — the reference
// hydrography and DEM sources are proprietary external datasets with no
// concrete adapter named anywhere in spec.md — so the fixture-backed fakes
// serve both roles until a deployment-specific adapter is written.
func buildStageEnv(ctx context.Context, logger *slog.Logger) *registry.StageEnv {
	objectStoreDir := config.GetEnvStr("RIPPLE_OBJECT_STORE_DIR", "/var/lib/ripple-engine/objects")

	objects, err := datasource.NewLocalObjectStore(objectStoreDir)
	if err != nil {
		logger.Warn("failed to open local object store, stages using it will fail", "error", err.Error())
	}

	return &registry.StageEnv{
		Context:    ctx,
		SourceRoot: config.GetEnvStr("RIPPLE_SOURCE_ROOT", ""),
		ReachRoot:  config.GetEnvStr("RIPPLE_REACH_ROOT", ""),
		Network:    &datasource.FakeNetworkProvider{},
		DEM:        &datasource.FakeDemProvider{},
		Objects:    objects,
		Solver:     buildSolverAdapter(logger),
		Events:     events.NewPublisher(events.LoadConfig()),
		Logger:     logger,
	}
}

// buildSolverAdapter shells out to the real solver binary when
// RIPPLE_SOLVER_BINARY names one, otherwise falls back to the
// deterministic FakeAdapter so a deployment without the proprietary
// solver installed can still exercise the rest of the pipeline.
func buildSolverAdapter(logger *slog.Logger) solver.Adapter {
	if binaryPath := config.GetEnvStr("RIPPLE_SOLVER_BINARY", ""); binaryPath != "" {
		return solver.NewExecAdapter(binaryPath, logger)
	}

	return solver.NewFakeAdapter()
}

func writeSuccess(result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return writeFailure(stageerr.Internal(err.Error(), "failed to marshal stage result"))
	}

	fmt.Fprintln(os.Stdout, string(data))

	return nil
}

// writeFailure writes stageErr's JSON form as the single required stderr
// line and returns it so cobra exits non-zero.
func writeFailure(stageErr *stageerr.StageError) error {
	data, err := json.Marshal(stageErr)
	if err != nil {
		data = []byte(`{"kind":"Internal","message":"failed to marshal stage error"}`)
	}

	fmt.Fprintln(os.Stderr, string(data))

	return stageErr
}
