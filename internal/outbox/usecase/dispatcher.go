package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/metrics"
	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/queue"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// DispatcherConfig holds outbox dispatcher configuration.
type DispatcherConfig struct {
	// Interval is the poller period between DispatchAll scans.
	Interval time.Duration
	// BatchSize is the maximum number of pending events per scan.
	BatchSize int
	// MaxAttempts is the retry ceiling for dead-letter retries.
	MaxAttempts int
}

// Dispatcher moves eligible outbox events onto the durable job queue. It is
// driven by a fixed-interval poller; a crash between commit and dispatch is
// always recovered by the next scan of pending rows.
type Dispatcher struct {
	config     DispatcherConfig
	txManager  database.TxManager
	outboxRepo OutboxEventRepository
	queue      queue.Queue
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	config DispatcherConfig,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	q queue.Queue,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		queue:      q,
		metrics:    businessMetrics,
		logger:     logger,
	}
}

// Start runs the dispatch poller until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.logger != nil {
		d.logger.Info("starting outbox dispatcher",
			slog.Duration("interval", d.config.Interval),
			slog.Int("batch_size", d.config.BatchSize),
		)
	}

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if d.logger != nil {
				d.logger.Info("stopping outbox dispatcher")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchAll(ctx, d.config.BatchSize); err != nil {
				if d.logger != nil {
					d.logger.Error("dispatch scan failed", slog.Any("error", err))
				}
			}
		}
	}
}

// Dispatch enqueues a single event by id. Events that already left the
// pending status are skipped, which makes duplicate dispatch triggers no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) error {
	event, err := d.outboxRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if event.Status != domain.OutboxEventStatusPending {
		return nil
	}

	return d.enqueue(ctx, event)
}

// DispatchAll selects up to batchSize oldest pending events and dispatches
// each independently; one bad event does not block the batch. Returns the
// number dispatched and the joined per-event errors for the poller to log.
func (d *Dispatcher) DispatchAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = d.config.BatchSize
	}

	var dispatched int
	var dispatchErrs []error

	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := d.outboxRepo.GetPendingEvents(ctx, batchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := d.enqueue(ctx, event); err != nil {
				dispatchErrs = append(dispatchErrs, err)
				continue
			}
			dispatched++
		}

		return nil
	})
	if err != nil {
		return dispatched, err
	}

	return dispatched, errors.Join(dispatchErrs...)
}

// RetryDeadLetters resets failed events under the retry ceiling back to
// pending and re-dispatches them. Events at or above the ceiling are left
// untouched for manual inspection.
func (d *Dispatcher) RetryDeadLetters(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = d.config.MaxAttempts
	}

	var retried int
	var retryErrs []error

	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := d.outboxRepo.GetFailedEvents(ctx, maxAttempts, d.config.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := d.outboxRepo.ResetToPending(ctx, event.ID); err != nil {
				retryErrs = append(retryErrs, err)
				continue
			}
			event.Status = domain.OutboxEventStatusPending
			event.LastError = nil
			if err := d.enqueue(ctx, event); err != nil {
				retryErrs = append(retryErrs, err)
				continue
			}
			retried++
		}

		return nil
	})
	if err != nil {
		return retried, err
	}

	return retried, errors.Join(retryErrs...)
}

// RetryEvent resets a single failed event and re-dispatches it.
func (d *Dispatcher) RetryEvent(ctx context.Context, id uuid.UUID) error {
	return d.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := d.outboxRepo.ResetToPending(ctx, id); err != nil {
			return err
		}
		event, err := d.outboxRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return d.enqueue(ctx, event)
	})
}

// Stats returns the number of events per status.
func (d *Dispatcher) Stats(ctx context.Context) (*domain.StatusCounts, error) {
	return d.outboxRepo.CountByStatus(ctx)
}

// CleanupSent deletes sent events older than the given age.
func (d *Dispatcher) CleanupSent(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	count, err := d.outboxRepo.DeleteSentOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if d.logger != nil && count > 0 {
		d.logger.Info("cleaned up sent outbox events",
			slog.Int64("count", count),
			slog.Time("cutoff", cutoff),
		)
	}
	return count, nil
}

// enqueue publishes the delivery job and flips the row to enqueued. A queue
// failure marks the row failed with the error captured so it is never
// silently dropped.
func (d *Dispatcher) enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	job := queue.Job{
		OutboxID: event.ID,
		Attempt:  event.Attempts + 1,
	}
	if event.DedupeKey != nil {
		job.DedupeKey = *event.DedupeKey
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		if markErr := d.outboxRepo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			err = errors.Join(err, markErr)
		}
		d.record(ctx, "dispatch", "error")
		return apperrors.Wrap(err, "failed to enqueue outbox event "+event.ID.String())
	}

	if err := d.outboxRepo.MarkEnqueued(ctx, event.ID); err != nil {
		// A concurrent dispatcher won the status race after we enqueued; the
		// worker's own status check makes the duplicate delivery harmless.
		if apperrors.Is(err, domain.ErrEventNotPending) {
			return nil
		}
		d.record(ctx, "dispatch", "error")
		return err
	}

	d.record(ctx, "dispatch", "success")
	return nil
}

// record emits a business metric when metrics are enabled.
func (d *Dispatcher) record(ctx context.Context, operation, status string) {
	if d.metrics != nil {
		d.metrics.RecordOperation(ctx, "outbox", operation, status)
	}
}
