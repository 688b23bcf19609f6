package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/campusops/testbench/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries the data needed to process a lifecycle event
// asynchronously. River serializes this as JSON into its job queue table.
// It includes a snapshot of the request at the time the event was published,
// so the worker never needs to query the database.
type EventJobArgs struct {
	Event       string `json:"event"`
	RequestID   string `json:"request_id"`
	Scenario    string `json:"scenario"`
	Requester   string `json:"requester"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "request.event" }

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

// Publish enqueues a lifecycle event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, req domain.Request) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:       string(event),
		RequestID:   req.ID,
		Scenario:    req.Scenario,
		Requester:   req.Requester,
		Environment: req.Environment,
		Status:      string(req.Status),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
