// Package registry holds the static table of pipeline processes the job
// runner entrypoint can execute: their names, input validation domains,
// directory preconditions, and eclipsed-reach eligibility.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/floodlib/ripple-engine/internal/datasource"
	"github.com/floodlib/ripple-engine/internal/events"
	"github.com/floodlib/ripple-engine/internal/solver"
)

// StageEnv is the environment a stage handler runs in: the reach data
// layout root, the data source adapters it may call out to, and a logger
// scoped to the running job.
type StageEnv struct {
	Context    context.Context
	SourceRoot string
	ReachRoot  string
	Network    datasource.NetworkProvider
	DEM        datasource.DemProvider
	Objects    datasource.ObjectStore
	Solver     solver.Adapter
	Events     events.Publisher
	Logger     *slog.Logger
}

// StageFunc is the shape of a pipeline stage's entrypoint: given a validated
// input document, it does its work and returns a JSON-serializable result or
// a *stageerr.StageError describing why it could not.
type StageFunc func(env *StageEnv, input json.RawMessage) (result any, err error)

// PathPrecondition is a directory-contract check a job's reach or source
// model must satisfy before its process is allowed to run, e.g. "a
// conflation.json document already exists in this reach submodel".
type PathPrecondition struct {
	Description string
	Check       func(env *StageEnv, input map[string]any) error
}

// Descriptor is one process's entry in the registry: its name, handler,
// input validation domains, preconditions, and eclipsed-reach eligibility.
type Descriptor struct {
	Name              string
	Handler           StageFunc
	Inputs            []InputSpec
	Preconditions     []PathPrecondition
	AllowedOnEclipsed bool
}

// Validate checks a job's raw input document against this descriptor's
// input specs, then its directory preconditions.
func (d Descriptor) Validate(env *StageEnv, raw json.RawMessage) (map[string]any, error) {
	var fields map[string]any

	if len(raw) == 0 {
		fields = map[string]any{}
	} else if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, newInvalidInput("input is not a JSON object: %s", err.Error())
	}

	for _, spec := range d.Inputs {
		if err := spec.apply(fields); err != nil {
			return nil, err
		}
	}

	for _, pre := range d.Preconditions {
		if err := pre.Check(env, fields); err != nil {
			return nil, err
		}
	}

	return fields, nil
}
