package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// EventWorker processes lifecycle event jobs from the River queue. It
// writes the audit log entry for each event; future versions will notify
// requesters when their environment is ready.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "request lifecycle event",
		"event", job.Args.Event,
		"request_id", job.Args.RequestID,
		"scenario", job.Args.Scenario,
		"requester", job.Args.Requester,
		"environment", job.Args.Environment,
		"status", job.Args.Status,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
