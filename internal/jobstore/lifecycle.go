package jobstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for state transition validation.
var (
	// ErrInvalidTransition indicates a transition not reachable from the given status.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrTerminalStateImmutable indicates an attempt to transition out of a terminal status.
	ErrTerminalStateImmutable = errors.New("terminal job status is immutable")
)

// validFromAccepted and validFromRunning enumerate the transitions allowed
// by spec: accepted -> {running, dismissed}; running -> {successful, failed, dismissed}.
var (
	validFromAccepted = map[Status]bool{
		StatusRunning:   true,
		StatusDismissed: true,
	}
	validFromRunning = map[Status]bool{
		StatusSuccessful: true,
		StatusFailed:     true,
		StatusDismissed:  true,
	}
)

// ValidateStateTransition validates a job status transition.
//
// Valid transitions:
//   - accepted -> {running, dismissed}
//   - running -> {successful, failed, dismissed}
//   - any terminal status -> itself (idempotent)
//
// Invalid transitions:
//   - terminal statuses (successful, failed, dismissed) to a different status
//   - accepted -> {successful, failed} (a job must run before it can finish)
func ValidateStateTransition(from, to Status) error {
	if from.IsTerminal() {
		if from != to {
			return fmt.Errorf("%w: %s -> %s", ErrTerminalStateImmutable, from, to)
		}

		return nil
	}

	switch from {
	case StatusAccepted:
		if !validFromAccepted[to] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
	case StatusRunning:
		if !validFromRunning[to] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
	default:
		return fmt.Errorf("%w: unknown source status %s", ErrInvalidTransition, from)
	}

	return nil
}
