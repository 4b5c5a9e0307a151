package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/slotgrid/slotgrid/internal/adapter/otel"
	"github.com/slotgrid/slotgrid/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	slots map[string]domain.Slot
}

func newMockRepo() *mockRepo {
	return &mockRepo{slots: make(map[string]domain.Slot)}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return s, nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Slot, error) {
	out := make([]domain.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) ListByCustomer(_ context.Context, customerID string) ([]domain.Slot, error) {
	var out []domain.Slot
	for _, s := range m.slots {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) FreeSlots(_ context.Context) ([]domain.Slot, error) {
	var out []domain.Slot
	for _, s := range m.slots {
		if s.CustomerID == "" && (s.State == domain.StateFree || s.State == domain.StateReclaimed) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) CountFree(_ context.Context) (int, error) {
	free, _ := m.FreeSlots(context.Background())
	return len(free), nil
}

func (m *mockRepo) Reserve(_ context.Context, slotID string, a domain.Assignment) (bool, error) {
	s, ok := m.slots[slotID]
	if !ok || s.CustomerID != "" {
		return false, nil
	}
	m.slots[slotID] = s.WithAssignment(a)
	return true, nil
}

func (m *mockRepo) Release(_ context.Context, slotID, customerID, credential string) (bool, error) {
	s, ok := m.slots[slotID]
	if !ok || s.CustomerID != customerID {
		return false, nil
	}
	s.State = domain.StateReclaimed
	s.CustomerID = ""
	s.Credential = credential
	m.slots[slotID] = s
	return true, nil
}

func (m *mockRepo) UpdateState(_ context.Context, slotID string, from, to domain.State) (bool, error) {
	s, ok := m.slots[slotID]
	if !ok || s.State != from {
		return false, nil
	}
	s.State = to
	m.slots[slotID] = s
	return true, nil
}

func (m *mockRepo) AccountLabels(_ context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockRepo) CreateAccountBatch(_ context.Context, account domain.Account, slots []domain.Slot) error {
	for _, s := range slots {
		m.slots[s.ID] = s
	}
	return nil
}

func seedSlot(m *mockRepo, id string) domain.Slot {
	account := domain.NewAccount("a-1", 0)
	slot := domain.NewSlot(id, account, 1, "000000")
	m.slots[id] = slot
	return slot
}

// --- Tests ---

func TestTracingRepository_GetByID_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	seedSlot(inner, "s-1")

	got, err := repo.GetByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "s-1" {
		t.Errorf("ID = %q, want %q", got.ID, "s-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "SlotRepository.GetByID" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "SlotRepository.GetByID")
	}

	assertAttribute(t, spans[0], "slot.id", "s-1")
}

func TestTracingRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}

	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingRepository_Reserve_RecordsOutcome(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	seedSlot(inner, "s-1")

	assignment := domain.Assignment{
		CustomerID: "c-1",
		Credential: "111111",
		AssignedAt: time.Now().UTC(),
	}

	reserved, err := repo.Reserve(context.Background(), "s-1", assignment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reserved {
		t.Fatal("expected slot to be reserved")
	}

	// A lost race shows up as reserved=false on the span, not an error.
	reserved, err = repo.Reserve(context.Background(), "s-1", assignment)
	if err != nil || reserved {
		t.Fatalf("second Reserve: reserved=%v err=%v", reserved, err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "SlotRepository.Reserve" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "SlotRepository.Reserve")
	}

	assertAttribute(t, spans[0], "slot.reserved", "true")
	assertAttribute(t, spans[0], "customer.id", "c-1")
	assertAttribute(t, spans[1], "slot.reserved", "false")
}

func TestTracingRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	seedSlot(inner, "s-1")
	seedSlot(inner, "s-2")

	slots, err := repo.List(context.Background(), domain.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Errorf("got %d slots, want 2", len(slots))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingRepository_UpdateState_RecordsStates(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	seedSlot(inner, "s-1")

	updated, err := repo.UpdateState(context.Background(), "s-1", domain.StateFree, domain.StateSuspended)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Fatal("expected state update to apply")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "SlotRepository.UpdateState" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "SlotRepository.UpdateState")
	}

	assertAttribute(t, spans[0], "state.from", "free")
	assertAttribute(t, spans[0], "state.to", "suspended")
}

func TestTracingRepository_CreateAccountBatch_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	account := domain.NewAccount("a-1", 0)
	slots := []domain.Slot{domain.NewSlot("s-1", account, 1, "000000")}

	if err := repo.CreateAccountBatch(context.Background(), account, slots); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "account.label", "1-8")
	assertAttribute(t, spans[0], "slot.count", "1")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
