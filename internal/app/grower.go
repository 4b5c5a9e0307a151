package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/slotgrid/slotgrid/internal/domain"
)

// growPool mints the next account batch: the account whose index follows the
// highest one recorded, plus its full complement of free slots. A label
// conflict (concurrent creator won) is returned untouched so the caller can
// re-discover instead of treating it as fatal.
func (s *SlotService) growPool(ctx context.Context) error {
	labels, err := s.repo.AccountLabels(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrPoolUnavailable) {
			return err
		}
		return fmt.Errorf("listing account labels: %w", err)
	}

	return s.createAccountBatch(ctx, domain.NextBatchIndex(labels))
}

// createAccountBatch builds one account and its slots and inserts them as a
// unit. Each slot starts free at positions 1..AccountCapacity with a fresh
// credential.
func (s *SlotService) createAccountBatch(ctx context.Context, index int) error {
	accountID, err := generateID()
	if err != nil {
		return fmt.Errorf("generating account id: %w", err)
	}
	account := domain.NewAccount(accountID, index)

	slots := make([]domain.Slot, 0, domain.AccountCapacity)
	for position := 1; position <= domain.AccountCapacity; position++ {
		slotID, err := generateID()
		if err != nil {
			return fmt.Errorf("generating slot id: %w", err)
		}
		credential, err := newCredential()
		if err != nil {
			return fmt.Errorf("generating slot credential: %w", err)
		}
		slots = append(slots, domain.NewSlot(slotID, account, position, credential))
	}

	if err := s.repo.CreateAccountBatch(ctx, account, slots); err != nil {
		var conflict *domain.LabelConflictError
		if errors.As(err, &conflict) || errors.Is(err, domain.ErrPoolUnavailable) {
			return err
		}
		return fmt.Errorf("creating account batch %q: %w", account.Label, err)
	}

	return nil
}
