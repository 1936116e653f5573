package solver

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// markerSuffix names the file the solver binary writes on completion,
// alongside its results file, so the adapter can detect completion via
// fsnotify instead of polling os.Stat in a loop.
const markerSuffix = ".done"

// ExecAdapter runs the configured solver binary as a child process and
// waits for its completion marker via fsnotify rather than busy-polling.
type ExecAdapter struct {
	BinaryPath string
	Logger     *slog.Logger
	// WaitTimeout bounds how long Run waits for the marker file after the
	// child process exits cleanly but before the solver flushes results to
	// disk; zero means no extra wait beyond ctx's own deadline.
	WaitTimeout time.Duration
}

// NewExecAdapter returns an ExecAdapter invoking binaryPath.
func NewExecAdapter(binaryPath string, logger *slog.Logger) *ExecAdapter {
	return &ExecAdapter{BinaryPath: binaryPath, Logger: logger, WaitTimeout: 30 * time.Second}
}

// Run implements Adapter.
func (a *ExecAdapter) Run(ctx context.Context, planPath string) (int, string, error) {
	resultsPath := strings.TrimSuffix(planPath, filepath.Ext(planPath)) + ".results.csv"
	markerPath := resultsPath + markerSuffix

	_ = os.Remove(markerPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, "", fmt.Errorf("failed to create results watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(resultsPath)
	if err := watcher.Add(dir); err != nil {
		return 0, "", fmt.Errorf("failed to watch results directory %q: %w", dir, err)
	}

	cmd := exec.CommandContext(ctx, a.BinaryPath, planPath) //nolint:gosec // solver binary path is operator-configured
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return 0, "", fmt.Errorf("failed to start solver: %w", err)
	}

	runErr := cmd.Wait()

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return 0, "", fmt.Errorf("failed to run solver: %w", runErr)
		}

		exitCode = exitErr.ExitCode()
	}

	if exitCode != 0 {
		return exitCode, resultsPath, nil
	}

	if err := a.awaitMarker(ctx, watcher, markerPath); err != nil {
		return 0, "", err
	}

	return 0, resultsPath, nil
}

func (a *ExecAdapter) awaitMarker(ctx context.Context, watcher *fsnotify.Watcher, markerPath string) error {
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}

	var deadline <-chan time.Time
	if a.WaitTimeout > 0 {
		deadline = time.After(a.WaitTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out waiting for solver completion marker %q", markerPath)
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("results watcher closed before completion marker appeared")
			}

			if event.Name == markerPath && (event.Op&fsnotify.Create != 0) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("results watcher closed before completion marker appeared")
			}

			if a.Logger != nil {
				a.Logger.Warn("solver results watcher error", slog.String("error", err.Error()))
			}
		}
	}
}

// OpenResults implements Adapter.
func (a *ExecAdapter) OpenResults(resultsPath string) (ResultReader, error) {
	f, err := os.Open(resultsPath) //nolint:gosec // path is produced by Run, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to open results file %q: %w", resultsPath, err)
	}

	return &csvResultReader{file: f}, nil
}

type csvResultReader struct {
	file *os.File
}

func (r *csvResultReader) Profiles() ([]Profile, error) {
	reader := csv.NewReader(bufio.NewReader(r.file))

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}

	var profiles []Profile

	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue // header row or malformed row
		}

		discharge, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid discharge at row %d: %w", i, err)
		}

		station, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid station at row %d: %w", i, err)
		}

		wse, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid water surface elevation at row %d: %w", i, err)
		}

		velocity, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid velocity at row %d: %w", i, err)
		}

		profiles = append(profiles, Profile{
			Discharge:             discharge,
			River:                 row[1],
			Reach:                 row[2],
			Station:               station,
			WaterSurfaceElevation: wse,
			Velocity:              velocity,
		})
	}

	return profiles, nil
}

func (r *csvResultReader) Close() error {
	return r.file.Close()
}
