package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/slotgrid/slotgrid/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// SlotEventJobArgs carries the data needed to process a slot event
// asynchronously. River serializes this as JSON into its job queue table. It
// includes a snapshot of the slot at the time the event was published, so the
// worker never needs to query the database. Credentials are deliberately
// excluded from the snapshot.
type SlotEventJobArgs struct {
	Event        string `json:"event"`
	SlotID       string `json:"slot_id"`
	AccountLabel string `json:"account_label"`
	Position     int    `json:"position"`
	CustomerID   string `json:"customer_id,omitempty"`
	State        string `json:"state"`
	PlanTag      string `json:"plan_tag,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (SlotEventJobArgs) Kind() string { return "slot.event" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a slot event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, slot domain.Slot) error {
	_, err := p.client.Insert(ctx, SlotEventJobArgs{
		Event:        string(event),
		SlotID:       slot.ID,
		AccountLabel: slot.AccountLabel,
		Position:     slot.Position,
		CustomerID:   slot.CustomerID,
		State:        string(slot.State),
		PlanTag:      slot.PlanTag,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing slot event job: %w", err)
	}
	return nil
}
