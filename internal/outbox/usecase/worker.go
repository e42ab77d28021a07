package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/allisson/bookings/internal/metrics"
	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/queue"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// Worker consumes delivery jobs from the durable queue, executes the handlers
// registered for the event's payload type and reconciles the outbox row.
// Delivery is at-least-once: handlers must tolerate replays.
type Worker struct {
	outboxRepo OutboxEventRepository
	registry   *Registry
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
}

// NewWorker creates a new Worker.
func NewWorker(
	outboxRepo OutboxEventRepository,
	registry *Registry,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		outboxRepo: outboxRepo,
		registry:   registry,
		metrics:    businessMetrics,
		logger:     logger,
	}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer) error {
	if w.logger != nil {
		w.logger.Info("starting outbox worker")
	}
	return consumer.Consume(ctx, w.HandleJob)
}

// HandleJob processes a single delivery job. The event row is re-read at
// delivery time (jobs carry only the id) so the worker never acts on a stale
// payload. Returning an error hands retry/backoff to the queue.
func (w *Worker) HandleJob(ctx context.Context, job queue.Job) error {
	event, err := w.outboxRepo.GetByID(ctx, job.OutboxID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// The row was deleted by an operator; nothing left to deliver.
			if w.logger != nil {
				w.logger.Warn("outbox event gone, acking job",
					slog.String("outbox_id", job.OutboxID.String()))
			}
			return nil
		}
		return err
	}

	if event.Status == domain.OutboxEventStatusSent {
		return nil
	}

	eventType, err := payloadType(event.Payload)
	if err != nil {
		// A payload without a type discriminator can never be routed; dead-letter
		// it instead of retrying forever.
		w.markFailed(ctx, event, err)
		w.record(ctx, "process", "error")
		return nil
	}

	handlers := w.registry.HandlersFor(eventType)
	if len(handlers) == 0 {
		// Unknown event types are not failures: a producer may ship before its
		// consumer. The event is still marked sent for the audit trail.
		if w.logger != nil {
			w.logger.Debug("no handlers registered for event type",
				slog.String("event_type", eventType),
				slog.String("outbox_id", event.ID.String()),
			)
		}
		return w.markSent(ctx, event)
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			if w.logger != nil {
				w.logger.Error("event handler failed",
					slog.String("event_type", eventType),
					slog.String("outbox_id", event.ID.String()),
					slog.Any("error", err),
				)
			}
			w.markFailed(ctx, event, err)
			w.record(ctx, "process", "error")
			return err
		}
	}

	w.record(ctx, "process", "success")
	return w.markSent(ctx, event)
}

// markSent reconciles the row after successful delivery.
func (w *Worker) markSent(ctx context.Context, event *domain.OutboxEvent) error {
	if err := w.outboxRepo.MarkSent(ctx, event.ID); err != nil {
		return err
	}
	if w.logger != nil {
		w.logger.Info("outbox event sent",
			slog.String("outbox_id", event.ID.String()),
			slog.String("topic", event.Topic),
		)
	}
	return nil
}

// markFailed captures the handler error on the row; the job outcome decides
// whether the queue retries.
func (w *Worker) markFailed(ctx context.Context, event *domain.OutboxEvent, cause error) {
	if err := w.outboxRepo.MarkFailed(ctx, event.ID, cause.Error()); err != nil && w.logger != nil {
		w.logger.Error("failed to mark outbox event failed",
			slog.String("outbox_id", event.ID.String()),
			slog.Any("error", err),
		)
	}
}

// record emits a business metric when metrics are enabled.
func (w *Worker) record(ctx context.Context, operation, status string) {
	if w.metrics != nil {
		w.metrics.RecordOperation(ctx, "outbox", operation, status)
	}
}

// payloadType extracts the "type" discriminator from the event payload.
func payloadType(payload string) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return "", apperrors.Wrap(err, "failed to parse event payload")
	}
	if envelope.Type == "" {
		return "", apperrors.New("event payload has no type discriminator")
	}
	return envelope.Type, nil
}
