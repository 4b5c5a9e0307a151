package app

import (
	"context"
	"fmt"

	"github.com/slotgrid/slotgrid/internal/domain"
)

// ReleaseSlotsForCustomer reclaims every slot held by the customer: clears
// the customer and all assignment metadata, rotates the credential, and marks
// the slot reclaimed. Returns how many slots were released. Releasing a
// customer with no slots is a no-op, so the operation is idempotent.
func (s *SlotService) ReleaseSlotsForCustomer(ctx context.Context, customerID string) (int, error) {
	slots, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("listing customer slots: %w", err)
	}

	released := 0
	for _, slot := range slots {
		credential, err := newCredential()
		if err != nil {
			return released, fmt.Errorf("generating replacement credential: %w", err)
		}

		ok, err := s.repo.Release(ctx, slot.ID, customerID, credential)
		if err != nil {
			return released, fmt.Errorf("releasing slot %s: %w", slot.ID, err)
		}
		if !ok {
			// Already released by a concurrent call; nothing to log.
			continue
		}
		released++

		reclaimed := slot
		reclaimed.State = domain.StateReclaimed
		reclaimed.CustomerID = ""
		reclaimed.Credential = credential

		s.recordHistory(ctx, reclaimed, domain.ActionReleased, map[string]any{
			"customer_id": customerID,
			"account":     slot.AccountLabel,
			"position":    slot.Position,
			"plan_tag":    slot.PlanTag,
		})
		s.publish(ctx, domain.EventReleased, reclaimed)
	}

	return released, nil
}
