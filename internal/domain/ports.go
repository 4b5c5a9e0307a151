package domain

import "context"

// SlotRepository defines the persistence contract for slots and accounts.
//
// Reserve, Release, and UpdateState are conditional updates: they mutate the
// row only if it still matches the expected prior state and report whether a
// row was affected. That rows-affected signal is the sole concurrency-control
// primitive the allocator relies on.
type SlotRepository interface {
	GetByID(ctx context.Context, id string) (Slot, error)
	List(ctx context.Context, filter ListFilter) ([]Slot, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Slot, error)

	// FreeSlots returns every slot eligible for assignment (free or
	// reclaimed, no customer), in a deterministic stored order.
	FreeSlots(ctx context.Context) ([]Slot, error)
	CountFree(ctx context.Context) (int, error)

	// Reserve assigns the slot to the customer described by a, but only if
	// the slot is still eligible. Returns false when another caller won.
	Reserve(ctx context.Context, slotID string, a Assignment) (bool, error)

	// Release reclaims the slot, scrubbing assignment metadata and writing
	// the rotated credential, but only if the slot is still held by the
	// given customer. Returns false when it no longer is.
	Release(ctx context.Context, slotID, customerID, credential string) (bool, error)

	// UpdateState moves the slot from one state to another, but only if it
	// is still in the expected source state.
	UpdateState(ctx context.Context, slotID string, from, to State) (bool, error)

	AccountLabels(ctx context.Context) ([]string, error)

	// CreateAccountBatch inserts one account and its full slot complement
	// atomically. A concurrent creation of the same label surfaces as a
	// LabelConflictError; a missing backing schema as ErrPoolUnavailable.
	CreateAccountBatch(ctx context.Context, account Account, slots []Slot) error
}

// ListFilter holds optional criteria for listing slots.
type ListFilter struct {
	State      *State
	CustomerID string
	Limit      int
	Offset     int
}

// HistoryRecorder defines the contract for the append-only audit log.
// Writes are best-effort; callers log failures and move on.
type HistoryRecorder interface {
	Append(ctx context.Context, entry HistoryEntry) error
}

// EventPublisher defines the contract for emitting slot events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, slot Slot) error
}

// TransitionValidator checks administrative state changes against the
// lifecycle transition table.
type TransitionValidator interface {
	Apply(ctx context.Context, current State, event Event) (State, error)
}
