package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotgrid/slotgrid/internal/domain"
)

const tracerName = "github.com/slotgrid/slotgrid/internal/adapter/otel"

// TracingRepository wraps a domain.SlotRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.SlotRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.SlotRepository.
var _ domain.SlotRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.SlotRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Slot, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.GetByID",
		trace.WithAttributes(attribute.String("slot.id", id)),
	)
	defer span.End()

	slot, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return slot, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Slot, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.State != nil {
		span.SetAttributes(attribute.String("filter.state", string(*filter.State)))
	}
	if filter.CustomerID != "" {
		span.SetAttributes(attribute.String("filter.customer_id", filter.CustomerID))
	}

	slots, err := r.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(slots)))
	}
	return slots, err
}

func (r *TracingRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Slot, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.ListByCustomer",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	slots, err := r.next.ListByCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(slots)))
	}
	return slots, err
}

func (r *TracingRepository) FreeSlots(ctx context.Context) ([]domain.Slot, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.FreeSlots")
	defer span.End()

	slots, err := r.next.FreeSlots(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(slots)))
	}
	return slots, err
}

func (r *TracingRepository) CountFree(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.CountFree")
	defer span.End()

	count, err := r.next.CountFree(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", count))
	}
	return count, err
}

func (r *TracingRepository) Reserve(ctx context.Context, slotID string, a domain.Assignment) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.Reserve",
		trace.WithAttributes(
			attribute.String("slot.id", slotID),
			attribute.String("customer.id", a.CustomerID),
		),
	)
	defer span.End()

	reserved, err := r.next.Reserve(ctx, slotID, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("slot.reserved", reserved))
	}
	return reserved, err
}

func (r *TracingRepository) Release(ctx context.Context, slotID, customerID, credential string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.Release",
		trace.WithAttributes(
			attribute.String("slot.id", slotID),
			attribute.String("customer.id", customerID),
		),
	)
	defer span.End()

	released, err := r.next.Release(ctx, slotID, customerID, credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("slot.released", released))
	}
	return released, err
}

func (r *TracingRepository) UpdateState(ctx context.Context, slotID string, from, to domain.State) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.UpdateState",
		trace.WithAttributes(
			attribute.String("slot.id", slotID),
			attribute.String("state.from", string(from)),
			attribute.String("state.to", string(to)),
		),
	)
	defer span.End()

	updated, err := r.next.UpdateState(ctx, slotID, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("slot.updated", updated))
	}
	return updated, err
}

func (r *TracingRepository) AccountLabels(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.AccountLabels")
	defer span.End()

	labels, err := r.next.AccountLabels(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(labels)))
	}
	return labels, err
}

func (r *TracingRepository) CreateAccountBatch(ctx context.Context, account domain.Account, slots []domain.Slot) error {
	ctx, span := r.tracer.Start(ctx, "SlotRepository.CreateAccountBatch",
		trace.WithAttributes(
			attribute.String("account.id", account.ID),
			attribute.String("account.label", account.Label),
			attribute.Int("slot.count", len(slots)),
		),
	)
	defer span.End()

	err := r.next.CreateAccountBatch(ctx, account, slots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
