package app

import (
	"context"
	"testing"

	"github.com/slotgrid/slotgrid/internal/domain"
)

func TestCreateAccountBatch_FullComplement(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})
	ctx := context.Background()

	if err := svc.createAccountBatch(ctx, 3); err != nil {
		t.Fatalf("createAccountBatch failed: %v", err)
	}

	account, ok := repo.accounts["25-32"]
	if !ok {
		t.Fatalf("account %q not created, have %v", "25-32", repo.accounts)
	}
	if account.ID == "" {
		t.Error("account ID should not be empty")
	}

	positions := make(map[int]bool)
	credentials := make(map[string]bool)
	for _, s := range repo.slots {
		if s.AccountID != account.ID {
			continue
		}
		if s.State != domain.StateFree {
			t.Errorf("slot %s state = %q, want %q", s.ID, s.State, domain.StateFree)
		}
		if s.CustomerID != "" {
			t.Errorf("slot %s CustomerID = %q, want empty", s.ID, s.CustomerID)
		}
		if len(s.Credential) != credentialLength {
			t.Errorf("slot %s credential length = %d, want %d", s.ID, len(s.Credential), credentialLength)
		}
		positions[s.Position] = true
		credentials[s.Credential] = true
	}

	if len(positions) != domain.AccountCapacity {
		t.Fatalf("got %d distinct positions, want %d", len(positions), domain.AccountCapacity)
	}
	for p := 1; p <= domain.AccountCapacity; p++ {
		if !positions[p] {
			t.Errorf("position %d missing", p)
		}
	}
	if len(credentials) < 2 {
		t.Error("credentials should not all collide")
	}
}

func TestGrowPool_SkipsGaps(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})
	ctx := context.Background()

	// Existing indices 0, 1, 3 — index 2 failed once and must stay skipped.
	for _, index := range []int{0, 1, 3} {
		if err := svc.createAccountBatch(ctx, index); err != nil {
			t.Fatalf("seeding batch %d: %v", index, err)
		}
	}

	if err := svc.growPool(ctx); err != nil {
		t.Fatalf("growPool failed: %v", err)
	}

	if _, ok := repo.accounts["33-40"]; !ok {
		t.Errorf("growth should create index 4 (%q), have %v", "33-40", repo.accounts)
	}
	if _, ok := repo.accounts["17-24"]; ok {
		t.Error("growth must never backfill skipped index 2")
	}
}

func TestGrowPool_IgnoresOperatorAccounts(t *testing.T) {
	repo := newMockRepo()
	repo.accounts["vip-customers"] = domain.Account{ID: "a-op", Label: "vip-customers"}
	svc := newTestService(repo, &mockRecorder{}, &mockPublisher{})

	if err := svc.growPool(context.Background()); err != nil {
		t.Fatalf("growPool failed: %v", err)
	}
	if _, ok := repo.accounts["1-8"]; !ok {
		t.Errorf("growth should start at the bootstrap label, have %v", repo.accounts)
	}
}
