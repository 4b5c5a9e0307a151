package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// SlotEventWorker processes slot event jobs from the River queue.
// For now it logs the event; future versions will dispatch to
// billing, notification, or downstream provisioning systems.
type SlotEventWorker struct {
	river.WorkerDefaults[SlotEventJobArgs]
}

// Work processes a single slot event job.
func (w *SlotEventWorker) Work(ctx context.Context, job *river.Job[SlotEventJobArgs]) error {
	slog.InfoContext(ctx, "processing slot event",
		"event", job.Args.Event,
		"slot_id", job.Args.SlotID,
		"account_label", job.Args.AccountLabel,
		"position", job.Args.Position,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
