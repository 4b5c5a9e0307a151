package domain

import (
	"fmt"
	"time"
)

// State represents the lifecycle state of a slot.
type State string

const (
	StateFree      State = "free"
	StateAssigned  State = "assigned"
	StateInactive  State = "inactive"
	StateSuspended State = "suspended"
	StateReclaimed State = "reclaimed"
)

// Event represents an action performed on a slot. The first group are
// administrative state changes validated by the FSM adapter; assignment and
// release never go through the FSM — they are committed by the store's
// conditional update and are published as events only.
type Event string

const (
	EventSuspend    Event = "suspend"
	EventReactivate Event = "reactivate"
	EventDeactivate Event = "deactivate"
	EventRestore    Event = "restore"

	EventAssigned Event = "assigned"
	EventReleased Event = "released"
)

// Transition defines a valid administrative state change: an event moves a
// slot from Src to Dst.
type Transition struct {
	Event Event
	Src   State
	Dst   State
}

// Transitions defines all valid administrative state changes. Only unassigned
// slots can be suspended or deactivated; an assigned slot must be released
// first, which keeps the "customer set iff assigned" invariant intact.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventSuspend, Src: StateFree, Dst: StateSuspended},
	{Event: EventSuspend, Src: StateReclaimed, Dst: StateSuspended},
	{Event: EventReactivate, Src: StateSuspended, Dst: StateFree},
	{Event: EventDeactivate, Src: StateFree, Dst: StateInactive},
	{Event: EventDeactivate, Src: StateReclaimed, Dst: StateInactive},
	{Event: EventRestore, Src: StateInactive, Dst: StateFree},
}

// Account is a fixed-capacity bucket of slots in the allocation pool. Accounts
// are created only by pool growth and are never deleted by the allocator.
type Account struct {
	ID        string
	Label     string
	CreatedAt time.Time
}

// NewAccount creates the account owning batch index, labeled deterministically.
func NewAccount(id string, index int) Account {
	return Account{
		ID:        id,
		Label:     LabelForIndex(index),
		CreatedAt: time.Now().UTC(),
	}
}

// Slot is the unit of allocation: one assignable identity inside an account,
// held by at most one customer at a time.
//
// Invariant: CustomerID is non-empty if and only if State is StateAssigned.
type Slot struct {
	ID           string
	AccountID    string
	AccountLabel string
	Position     int
	DisplayName  string
	Credential   string
	State        State
	CustomerID   string
	AssignedBy   string
	AssignedAt   time.Time
	ActivatesAt  string // calendar date, YYYY-MM-DD
	ExpiresAt    string // calendar date, YYYY-MM-DD
	Note         string
	PlanTag      string
	HasAddOn     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSlot creates a free slot at the given position of an account.
func NewSlot(id string, account Account, position int, credential string) Slot {
	now := time.Now().UTC()
	return Slot{
		ID:           id,
		AccountID:    account.ID,
		AccountLabel: account.Label,
		Position:     position,
		DisplayName:  fmt.Sprintf("Screen %d", position),
		Credential:   credential,
		State:        StateFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Assignment carries every field written by a conditional reservation.
type Assignment struct {
	CustomerID  string
	Credential  string
	AssignedBy  string
	AssignedAt  time.Time
	ActivatesAt string
	ExpiresAt   string
	Note        string
	PlanTag     string
	HasAddOn    bool
}

// WithAssignment returns a copy of the slot as it reads after a successful
// reservation, so the allocator can return the result without a re-read.
func (s Slot) WithAssignment(a Assignment) Slot {
	s.State = StateAssigned
	s.CustomerID = a.CustomerID
	s.Credential = a.Credential
	s.AssignedBy = a.AssignedBy
	s.AssignedAt = a.AssignedAt
	s.ActivatesAt = a.ActivatesAt
	s.ExpiresAt = a.ExpiresAt
	s.Note = a.Note
	s.PlanTag = a.PlanTag
	s.HasAddOn = a.HasAddOn
	s.UpdatedAt = a.AssignedAt
	return s
}

// Action identifies the kind of mutation recorded in the slot history log.
type Action string

const (
	ActionAssigned Action = "assigned"
	ActionReleased Action = "released"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
)

// HistoryEntry is an append-only audit record of a slot mutation. History is
// observability only; allocation state is fully determined by slot rows.
type HistoryEntry struct {
	ID        string
	SlotID    string
	Action    Action
	Metadata  string
	CreatedAt time.Time
}
