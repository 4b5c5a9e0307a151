package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotgrid/slotgrid/internal/domain"
)

// TracingRecorder wraps a domain.HistoryRecorder with OpenTelemetry tracing.
type TracingRecorder struct {
	next   domain.HistoryRecorder
	tracer trace.Tracer
}

// Compile-time check: TracingRecorder implements domain.HistoryRecorder.
var _ domain.HistoryRecorder = (*TracingRecorder)(nil)

// NewTracingRecorder creates a tracing decorator around the given recorder.
func NewTracingRecorder(next domain.HistoryRecorder) *TracingRecorder {
	return &TracingRecorder{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRecorder) Append(ctx context.Context, entry domain.HistoryEntry) error {
	ctx, span := r.tracer.Start(ctx, "HistoryRecorder.Append",
		trace.WithAttributes(
			attribute.String("slot.id", entry.SlotID),
			attribute.String("history.action", string(entry.Action)),
		),
	)
	defer span.End()

	err := r.next.Append(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
