// Package queue provides the durable job queue used to deliver outbox events.
// Jobs carry only the outbox event id; the worker re-reads the event row at
// delivery time so a stale payload can never be processed.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Job is the unit of work placed on the queue by the outbox dispatcher.
type Job struct {
	OutboxID uuid.UUID `json:"outbox_id"`
	// DedupeKey, when set, is used as the queue-level message id so the broker
	// suppresses duplicate publications inside its dedupe window.
	DedupeKey string `json:"-"`
	// Attempt is the dispatch attempt number, used to build a distinct message
	// id per re-dispatch so dead-letter retries are not deduplicated away.
	Attempt int `json:"-"`
}

// Handler processes a single job. Returning an error triggers the queue's own
// retry/backoff; returning nil acknowledges the job.
type Handler func(ctx context.Context, job Job) error

// Queue enqueues delivery jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Consumer delivers jobs to a handler until the context is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}
