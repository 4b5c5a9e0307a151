package app

import (
	"context"
	"testing"
	"time"

	"github.com/slotgrid/slotgrid/internal/domain"
)

func TestRelease_RoundTrip(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	pub := &mockPublisher{}
	svc := newTestService(repo, rec, pub)
	ctx := context.Background()

	assigned, err := svc.AssignSlot(ctx, AssignParams{
		CustomerID:  "c-1",
		AssignedBy:  "ops",
		ActivatesAt: "2026-08-01",
		ExpiresAt:   "2026-09-01",
		Note:        "annual deal",
		PlanTag:     "premium",
		HasAddOn:    true,
	})
	if err != nil {
		t.Fatalf("AssignSlot failed: %v", err)
	}

	released, err := svc.ReleaseSlotsForCustomer(ctx, "c-1")
	if err != nil {
		t.Fatalf("ReleaseSlotsForCustomer failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	got, err := repo.GetByID(ctx, assigned.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.State != domain.StateReclaimed {
		t.Errorf("State = %q, want %q", got.State, domain.StateReclaimed)
	}
	if got.CustomerID != "" {
		t.Errorf("CustomerID = %q, want empty", got.CustomerID)
	}
	if got.Credential == assigned.Credential {
		t.Error("credential should rotate on release")
	}
	if got.AssignedBy != "" || !got.AssignedAt.IsZero() || got.ActivatesAt != "" ||
		got.ExpiresAt != "" || got.Note != "" || got.PlanTag != "" || got.HasAddOn {
		t.Errorf("assignment metadata not scrubbed: %+v", got)
	}

	if len(rec.entries) != 2 || rec.entries[1].Action != domain.ActionReleased {
		t.Errorf("history = %+v, want assigned then released", rec.entries)
	}
	if len(pub.events) != 2 || pub.events[1] != domain.EventReleased {
		t.Errorf("events = %v, want [assigned released]", pub.events)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})
	ctx := context.Background()

	if _, err := svc.AssignSlot(ctx, AssignParams{CustomerID: "c-1"}); err != nil {
		t.Fatalf("AssignSlot failed: %v", err)
	}

	first, err := svc.ReleaseSlotsForCustomer(ctx, "c-1")
	if err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if first != 1 {
		t.Errorf("first release = %d, want 1", first)
	}

	credentialAfterFirst := onlySlot(t, repo).Credential

	second, err := svc.ReleaseSlotsForCustomer(ctx, "c-1")
	if err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	if second != 0 {
		t.Errorf("second release = %d, want 0 (no-op)", second)
	}
	if got := onlySlot(t, repo).Credential; got != credentialAfterFirst {
		t.Error("no-op release must not rotate the credential again")
	}
}

func TestRelease_UnknownCustomerIsNoOp(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockRecorder{}, &mockPublisher{})

	released, err := svc.ReleaseSlotsForCustomer(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("release of unknown customer should not error: %v", err)
	}
	if released != 0 {
		t.Errorf("released = %d, want 0", released)
	}
}

func TestRelease_MultipleSlots(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})
	ctx := context.Background()

	if _, err := svc.AssignSlots(ctx, AssignParams{CustomerID: "c-1"}, 3); err != nil {
		t.Fatalf("AssignSlots failed: %v", err)
	}
	if _, err := svc.AssignSlot(ctx, AssignParams{CustomerID: "c-2"}); err != nil {
		t.Fatalf("AssignSlot failed: %v", err)
	}

	released, err := svc.ReleaseSlotsForCustomer(ctx, "c-1")
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released != 3 {
		t.Errorf("released = %d, want 3", released)
	}

	// The other customer's slot is untouched.
	remaining, err := repo.ListByCustomer(ctx, "c-2")
	if err != nil {
		t.Fatalf("ListByCustomer failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("c-2 slots = %d, want 1", len(remaining))
	}
}

func TestReleasedSlotIsReassignable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})
	ctx := context.Background()

	first, err := svc.AssignSlot(ctx, AssignParams{CustomerID: "c-1"})
	if err != nil {
		t.Fatalf("AssignSlot failed: %v", err)
	}
	if _, err := svc.ReleaseSlotsForCustomer(ctx, "c-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	second, err := svc.AssignSlot(ctx, AssignParams{CustomerID: "c-2"})
	if err != nil {
		t.Fatalf("reassignment failed: %v", err)
	}

	// Reclaimed slots are as eligible as never-used ones, so the preferred
	// candidate is the same physical slot.
	if second.ID != first.ID {
		t.Errorf("reassigned slot = %s, want reclaimed slot %s", second.ID, first.ID)
	}
	if second.CustomerID != "c-2" {
		t.Errorf("CustomerID = %q, want %q", second.CustomerID, "c-2")
	}
	if second.AssignedAt.Equal(first.AssignedAt) && second.Credential == first.Credential {
		t.Error("reassignment should carry fresh credential and timestamp")
	}
}

func onlySlot(t *testing.T, repo *mockRepo) domain.Slot {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, s := range repo.slots {
		if s.Position == 1 {
			return s
		}
	}
	t.Fatal("no slot at position 1")
	return domain.Slot{}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Minute); err == nil {
		t.Error("expected context error from cancelled sleep")
	}
}
