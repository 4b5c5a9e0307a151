package domain_test

import (
	"testing"

	"github.com/slotgrid/slotgrid/internal/domain"
)

func TestAllocationError_Error(t *testing.T) {
	err := &domain.AllocationError{Attempts: 5}
	want := "could not allocate a slot after 5 attempts: high contention or system error"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLabelConflictError_Error(t *testing.T) {
	err := &domain.LabelConflictError{Label: "9-16"}
	want := `account label "9-16" already exists`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Event:   domain.EventSuspend,
		Current: domain.StateAssigned,
	}
	want := `event "suspend" is not valid from state "assigned"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
