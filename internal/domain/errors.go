package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrPoolUnavailable means the backing schema for the slot pool is
	// missing or misconfigured. Callers use it to degrade gracefully
	// instead of failing the enclosing workflow.
	ErrPoolUnavailable = errors.New("slot pool unavailable")
)

// AllocationError is returned when the retry ceiling is hit while finding or
// reserving a slot. It is retryable from the caller's point of view.
type AllocationError struct {
	Attempts int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("could not allocate a slot after %d attempts: high contention or system error", e.Attempts)
}

// LabelConflictError is returned when an account label is already in use,
// meaning a concurrent creator won the batch. Pool growth treats it as a
// signal to re-discover free slots, not as a failure.
type LabelConflictError struct {
	Label string
}

func (e *LabelConflictError) Error() string {
	return fmt.Sprintf("account label %q already exists", e.Label)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}
