// Package solver wraps the external steady-state hydraulic solver binary
// behind a narrow interface so pipeline stages never shell out directly.
// The production Adapter is the only place in the module that invokes the
// external binary; every stage test runs against FakeAdapter instead.
package solver

import (
	"context"
)

// Profile is one discharge's solved record at one cross-section, matching
// the record set the normative spec describes: discharge, river, reach,
// station, water surface elevation, velocity.
type Profile struct {
	Discharge             float64
	River                 string
	Reach                 string
	Station               float64
	WaterSurfaceElevation float64
	Velocity              float64
}

// ResultReader exposes a solved plan's profiles without requiring the
// caller to know the results file's on-disk format.
type ResultReader interface {
	Profiles() ([]Profile, error)
	Close() error
}

// Adapter is the only interface through which a pipeline stage invokes the
// external solver.
type Adapter interface {
	// Run invokes the solver against planPath and blocks until it exits or
	// ctx is canceled. A non-zero exitCode is not itself an error return;
	// callers translate it to stageerr.KindSolverCrash.
	Run(ctx context.Context, planPath string) (exitCode int, resultsPath string, err error)

	// OpenResults opens a previously produced results file for reading.
	OpenResults(resultsPath string) (ResultReader, error)
}
