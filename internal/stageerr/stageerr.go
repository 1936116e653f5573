// Package stageerr defines the error taxonomy shared by the process registry,
// the pipeline stages, and the process supervisor.
//
// A stage never returns a bare error for a condition the caller needs to act
// on differently; it wraps one of the sentinels below in a *StageError so the
// supervisor can translate it into the job's error_json without string
// matching.
package stageerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error classification, carried in error_json.
type Kind string

// The closed set of stage error kinds.
const (
	KindUnknownProcess          Kind = "UnknownProcess"
	KindInvalidInput            Kind = "InvalidInput"
	KindPrecondition            Kind = "Precondition"
	KindReachBusy               Kind = "ReachBusy"
	KindEclipsed                Kind = "Eclipsed"
	KindSolverCrash             Kind = "SolverCrash"
	KindTerrainOutOfBounds      Kind = "TerrainOutOfBounds"
	KindDivergingNetwork        Kind = "DivergingNetwork"
	KindUnsteadyFlowUnsupported Kind = "UnsteadyFlowUnsupported"
	KindNoValidPlan             Kind = "NoValidPlan"
	KindNotASourceModel         Kind = "NotASourceModel"
	KindDismissed               Kind = "Dismissed"
	KindInternal                Kind = "Internal"
)

// Sentinel errors. Wrap one of these with fmt.Errorf("...: %w", ErrX) or
// construct a *StageError directly when a traceback needs to be attached.
var (
	ErrUnknownProcess          = errors.New("unknown process")
	ErrInvalidInput            = errors.New("invalid input")
	ErrPrecondition            = errors.New("precondition not satisfied")
	ErrReachBusy               = errors.New("reach submodel is locked by another job")
	ErrEclipsed                = errors.New("reach is eclipsed")
	ErrSolverCrash             = errors.New("solver exited non-zero")
	ErrTerrainOutOfBounds      = errors.New("dem does not cover reach footprint")
	ErrDivergingNetwork        = errors.New("reference network diverges")
	ErrUnsteadyFlowUnsupported = errors.New("plan's flow file is not steady-state")
	ErrNoValidPlan             = errors.New("no valid plan without encroachments")
	ErrNotASourceModel         = errors.New("directory is not a valid source model bundle")
	ErrDismissed               = errors.New("job was dismissed")
	ErrInternal                = errors.New("internal error")
)

var sentinelByKind = map[Kind]error{
	KindUnknownProcess:          ErrUnknownProcess,
	KindInvalidInput:            ErrInvalidInput,
	KindPrecondition:            ErrPrecondition,
	KindReachBusy:               ErrReachBusy,
	KindEclipsed:                ErrEclipsed,
	KindSolverCrash:             ErrSolverCrash,
	KindTerrainOutOfBounds:      ErrTerrainOutOfBounds,
	KindDivergingNetwork:        ErrDivergingNetwork,
	KindUnsteadyFlowUnsupported: ErrUnsteadyFlowUnsupported,
	KindNoValidPlan:             ErrNoValidPlan,
	KindNotASourceModel:         ErrNotASourceModel,
	KindDismissed:               ErrDismissed,
	KindInternal:                ErrInternal,
}

// StageError is the structured form written to a job's error_json.
// Traceback is populated only for KindInternal.
type StageError struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

func (e *StageError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is(err, stageerr.ErrSolverCrash) work against a *StageError.
func (e *StageError) Unwrap() error {
	return sentinelByKind[e.Kind]
}

// New constructs a StageError of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal constructs a KindInternal StageError carrying a traceback.
func Internal(traceback string, format string, args ...any) *StageError {
	return &StageError{
		Kind:      KindInternal,
		Message:   fmt.Sprintf(format, args...),
		Traceback: traceback,
	}
}

// As extracts a *StageError from err, falling back to wrapping it as
// KindInternal with err.Error() as both message and traceback when err isn't
// already a *StageError. Used by the job runner entrypoint to guarantee every
// stage failure becomes a well-formed error document.
func As(err error) *StageError {
	if err == nil {
		return nil
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}

	return Internal(err.Error(), "%s", err.Error())
}
