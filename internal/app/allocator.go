package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slotgrid/slotgrid/internal/domain"
)

const (
	// maxAttempts bounds both candidate discovery and reservation retries.
	maxAttempts = 5

	// retryDelay is the base backoff, scaled linearly by attempt number.
	retryDelay = 100 * time.Millisecond

	// maxBatchQuantity bounds a single multi-slot request.
	maxBatchQuantity = 50
)

// AssignParams carries the caller-supplied fields of an assignment.
// Zero-valued AssignedAt defaults to now; empty ActivatesAt defaults to
// today's calendar date.
type AssignParams struct {
	CustomerID  string
	AssignedBy  string
	AssignedAt  time.Time
	ActivatesAt string
	ExpiresAt   string
	Note        string
	PlanTag     string
	HasAddOn    bool
}

func (p AssignParams) assignment(credential string) domain.Assignment {
	assignedAt := p.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}

	activatesAt := p.ActivatesAt
	if activatesAt == "" {
		activatesAt = time.Now().UTC().Format("2006-01-02")
	}

	return domain.Assignment{
		CustomerID:  p.CustomerID,
		Credential:  credential,
		AssignedBy:  p.AssignedBy,
		AssignedAt:  assignedAt,
		ActivatesAt: activatesAt,
		ExpiresAt:   p.ExpiresAt,
		Note:        p.Note,
		PlanTag:     p.PlanTag,
		HasAddOn:    p.HasAddOn,
	}
}

// AssignSlot reserves one slot for the customer. It finds (or creates) a
// candidate and attempts a conditional reservation; when another caller wins
// the same candidate it backs off and retries from discovery. The conditional
// update is the only correctness-bearing step — it is what guarantees a slot
// is never handed to two customers.
func (s *SlotService) AssignSlot(ctx context.Context, p AssignParams) (domain.Slot, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := s.FindOrCreateFreeSlot(ctx)
		if err != nil {
			return domain.Slot{}, err
		}

		credential, err := newCredential()
		if err != nil {
			return domain.Slot{}, fmt.Errorf("generating credential: %w", err)
		}

		a := p.assignment(credential)

		reserved, err := s.repo.Reserve(ctx, candidate.ID, a)
		if err != nil {
			return domain.Slot{}, fmt.Errorf("reserving slot: %w", err)
		}
		if !reserved {
			// Lost the race for this candidate; rediscover after a
			// short pause.
			if err := s.backoff(ctx, attempt); err != nil {
				return domain.Slot{}, err
			}
			continue
		}

		slot := candidate.WithAssignment(a)
		s.recordHistory(ctx, slot, domain.ActionAssigned, map[string]any{
			"customer_id": slot.CustomerID,
			"assigned_by": slot.AssignedBy,
			"plan_tag":    slot.PlanTag,
			"account":     slot.AccountLabel,
			"position":    slot.Position,
		})
		s.publish(ctx, domain.EventAssigned, slot)

		return slot, nil
	}

	return domain.Slot{}, &domain.AllocationError{Attempts: maxAttempts}
}

// AssignSlots reserves quantity slots sequentially with shared parameters.
// The batch is not atomic: a failure partway through returns the slots
// assigned so far together with the error, and leaves them assigned.
func (s *SlotService) AssignSlots(ctx context.Context, p AssignParams, quantity int) ([]domain.Slot, error) {
	if quantity < 1 || quantity > maxBatchQuantity {
		return nil, fmt.Errorf("quantity must be between 1 and %d, got %d", maxBatchQuantity, quantity)
	}

	slots := make([]domain.Slot, 0, quantity)
	for i := range quantity {
		slot, err := s.AssignSlot(ctx, p)
		if err != nil {
			return slots, fmt.Errorf("assigning slot %d of %d: %w", i+1, quantity, err)
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// FindOrCreateFreeSlot returns the preferred assignment candidate, growing
// the pool by one account batch when no eligible slot exists. Candidates are
// ordered deterministically so concurrent callers converge on the same slot;
// the reservation step resolves who actually gets it.
func (s *SlotService) FindOrCreateFreeSlot(ctx context.Context) (domain.Slot, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		free, err := s.repo.FreeSlots(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrPoolUnavailable) {
				return domain.Slot{}, err
			}
			return domain.Slot{}, fmt.Errorf("listing free slots: %w", err)
		}

		if len(free) > 0 {
			domain.SortCandidates(free)
			return free[0], nil
		}

		if err := s.growPool(ctx); err != nil {
			var conflict *domain.LabelConflictError
			if errors.As(err, &conflict) {
				// A concurrent caller minted the batch; its slots
				// are discoverable on the next pass.
				if err := s.backoff(ctx, attempt); err != nil {
					return domain.Slot{}, err
				}
				continue
			}
			return domain.Slot{}, err
		}
	}

	return domain.Slot{}, &domain.AllocationError{Attempts: maxAttempts}
}

func (s *SlotService) backoff(ctx context.Context, attempt int) error {
	return s.sleep(ctx, time.Duration(attempt)*retryDelay)
}
