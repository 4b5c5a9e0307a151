package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotgrid/slotgrid/internal/domain"
)

// SlotService orchestrates slot allocation, release, and administrative
// state changes.
type SlotService struct {
	repo      domain.SlotRepository
	history   domain.HistoryRecorder
	publisher domain.EventPublisher
	validator domain.TransitionValidator

	// sleep is the backoff hook between retry attempts. Tests replace it
	// to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlotService creates a service with the given adapters.
func NewSlotService(
	repo domain.SlotRepository,
	history domain.HistoryRecorder,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
) *SlotService {
	return &SlotService{
		repo:      repo,
		history:   history,
		publisher: publisher,
		validator: validator,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetByID returns a slot by its unique identifier.
func (s *SlotService) GetByID(ctx context.Context, id string) (domain.Slot, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns slots matching the given filter.
func (s *SlotService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Slot, error) {
	return s.repo.List(ctx, filter)
}

// FreeSlotCount returns how many slots are currently eligible for assignment.
// Used by capacity dashboards.
func (s *SlotService) FreeSlotCount(ctx context.Context) (int, error) {
	return s.repo.CountFree(ctx)
}

// Transition applies an administrative lifecycle event to a slot. The state
// write is conditional on the state the event was validated against, so a
// concurrent change makes the transition fail rather than clobber.
func (s *SlotService) Transition(ctx context.Context, id string, event domain.Event) (domain.Slot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Slot{}, err
	}

	next, err := s.validator.Apply(ctx, slot.State, event)
	if err != nil {
		return domain.Slot{}, err
	}

	updated, err := s.repo.UpdateState(ctx, id, slot.State, next)
	if err != nil {
		return domain.Slot{}, fmt.Errorf("updating slot state: %w", err)
	}
	if !updated {
		// The slot moved under us; report the transition against its
		// current state.
		fresh, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return domain.Slot{}, err
		}
		return domain.Slot{}, &domain.TransitionError{Event: event, Current: fresh.State}
	}

	slot.State = next
	s.recordHistory(ctx, slot, domain.ActionUpdated, map[string]any{
		"event": string(event),
		"state": string(next),
	})
	s.publish(ctx, event, slot)

	return slot, nil
}

// recordHistory appends an audit entry for a slot mutation. History is
// best-effort: failures are logged and never surfaced to the caller.
func (s *SlotService) recordHistory(ctx context.Context, slot domain.Slot, action domain.Action, metadata map[string]any) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		slog.WarnContext(ctx, "encoding history metadata failed",
			"slot_id", slot.ID, "action", string(action), "error", err)
		return
	}

	id, err := generateID()
	if err != nil {
		slog.WarnContext(ctx, "generating history id failed",
			"slot_id", slot.ID, "action", string(action), "error", err)
		return
	}

	entry := domain.HistoryEntry{
		ID:        id,
		SlotID:    slot.ID,
		Action:    action,
		Metadata:  string(payload),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.history.Append(ctx, entry); err != nil {
		slog.WarnContext(ctx, "history append failed",
			"slot_id", slot.ID, "action", string(action), "error", err)
	}
}

// publish emits a slot event. Like history, events are best-effort once the
// state change is durable.
func (s *SlotService) publish(ctx context.Context, event domain.Event, slot domain.Slot) {
	if err := s.publisher.Publish(ctx, event, slot); err != nil {
		slog.WarnContext(ctx, "event publish failed",
			"event", string(event), "slot_id", slot.ID, "error", err)
	}
}
