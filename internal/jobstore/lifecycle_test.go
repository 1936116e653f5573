package jobstore

import (
	"errors"
	"testing"
)

func TestValidateStateTransition_ValidTransitions(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"accepted to running", StatusAccepted, StatusRunning},
		{"accepted to dismissed", StatusAccepted, StatusDismissed},
		{"running to successful", StatusRunning, StatusSuccessful},
		{"running to failed", StatusRunning, StatusFailed},
		{"running to dismissed", StatusRunning, StatusDismissed},
		{"successful to successful", StatusSuccessful, StatusSuccessful},
		{"failed to failed", StatusFailed, StatusFailed},
		{"dismissed to dismissed", StatusDismissed, StatusDismissed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStateTransition(tt.from, tt.to); err != nil {
				t.Errorf("ValidateStateTransition(%s, %s) = %v, want nil", tt.from, tt.to, err)
			}
		})
	}
}

func TestValidateStateTransition_InvalidTransitions(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr error
	}{
		{"accepted to successful", StatusAccepted, StatusSuccessful, ErrInvalidTransition},
		{"accepted to failed", StatusAccepted, StatusFailed, ErrInvalidTransition},
		{"successful to running", StatusSuccessful, StatusRunning, ErrTerminalStateImmutable},
		{"failed to running", StatusFailed, StatusRunning, ErrTerminalStateImmutable},
		{"dismissed to running", StatusDismissed, StatusRunning, ErrTerminalStateImmutable},
		{"dismissed to accepted", StatusDismissed, StatusAccepted, ErrTerminalStateImmutable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStateTransition(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateStateTransition(%s, %s) = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	terminal := []Status{StatusSuccessful, StatusFailed, StatusDismissed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}

	nonTerminal := []Status{StatusAccepted, StatusRunning}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}
