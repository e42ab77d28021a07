// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/outbox/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

const postgresOutboxColumns = `id, topic, key, payload, dedupe_key, status, attempts, last_error, created_at, enqueued_at, sent_at`

// Create inserts a new outbox event
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, topic, key, payload, dedupe_key, status, attempts, last_error, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := querier.ExecContext(ctx, query, event.ID, event.Topic, event.Key, event.Payload,
		event.DedupeKey, event.Status, event.Attempts, event.LastError)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// GetByID retrieves an outbox event by ID
func (r *PostgreSQLOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresOutboxColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanPostgresOutboxEvent(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by id")
	}
	return event, nil
}

// GetPendingEvents retrieves the oldest pending events up to limit
func (r *PostgreSQLOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresOutboxColumns + `
			  FROM outbox_events
			  WHERE status = $1
			  ORDER BY created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	return r.queryEvents(ctx, querier, query, domain.OutboxEventStatusPending, limit)
}

// GetFailedEvents retrieves failed events whose attempts are under the ceiling
func (r *PostgreSQLOutboxEventRepository) GetFailedEvents(
	ctx context.Context,
	maxAttempts int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresOutboxColumns + `
			  FROM outbox_events
			  WHERE status = $1 AND attempts < $2
			  ORDER BY created_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	return r.queryEvents(ctx, querier, query, domain.OutboxEventStatusFailed, maxAttempts, limit)
}

// MarkEnqueued transitions a pending event to enqueued, stamping enqueued_at and
// incrementing attempts. The status guard makes duplicate dispatch triggers no-ops.
func (r *PostgreSQLOutboxEventRepository) MarkEnqueued(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, enqueued_at = NOW(), attempts = attempts + 1
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusEnqueued, id, domain.OutboxEventStatusPending)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event enqueued")
	}
	return requireRowAffected(result, domain.ErrEventNotPending)
}

// MarkSent transitions an event to sent with sent_at stamped. Events that are
// already sent are left untouched and no error is returned, so concurrent
// deliveries of the same job converge on a single terminal state.
func (r *PostgreSQLOutboxEventRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, sent_at = NOW(), last_error = NULL
			  WHERE id = $2 AND status <> $1`

	_, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusSent, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event sent")
	}
	return nil
}

// MarkFailed transitions an event to failed with the error captured. Sent
// events are never moved back.
func (r *PostgreSQLOutboxEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, last_error = $2
			  WHERE id = $3 AND status <> $4`

	_, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusFailed, errMsg, id, domain.OutboxEventStatusSent)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event failed")
	}
	return nil
}

// ResetToPending moves a failed event back to pending and clears the error.
func (r *PostgreSQLOutboxEventRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, last_error = NULL
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusPending, id, domain.OutboxEventStatusFailed)
	if err != nil {
		return apperrors.Wrap(err, "failed to reset outbox event")
	}
	return requireRowAffected(result, domain.ErrEventNotFailed)
}

// List retrieves events filtered by optional status and topic, newest first.
func (r *PostgreSQLOutboxEventRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresOutboxColumns + `
			  FROM outbox_events
			  WHERE ($1 = '' OR status = $1) AND ($2 = '' OR topic = $2)
			  ORDER BY created_at DESC
			  OFFSET $3 LIMIT $4`

	return r.queryEvents(ctx, querier, query, filter.Status, filter.Topic, filter.Offset, filter.Limit)
}

// Delete removes a single event
func (r *PostgreSQLOutboxEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete outbox event")
	}
	return requireRowAffected(result, domain.ErrEventNotFound)
}

// DeleteSentOlderThan removes sent events whose sent_at is older than the cutoff.
// This is the only path that removes events in bulk; pending, enqueued and
// failed rows are always retained.
func (r *PostgreSQLOutboxEventRepository) DeleteSentOlderThan(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE status = $1 AND sent_at IS NOT NULL AND sent_at < $2`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusSent, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete sent outbox events")
	}
	return result.RowsAffected()
}

// CountByStatus returns the number of events per status.
func (r *PostgreSQLOutboxEventRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT
			  COUNT(*) FILTER (WHERE status = 'pending'),
			  COUNT(*) FILTER (WHERE status = 'enqueued'),
			  COUNT(*) FILTER (WHERE status = 'sent'),
			  COUNT(*) FILTER (WHERE status = 'failed')
			  FROM outbox_events`

	var counts domain.StatusCounts
	err := querier.QueryRowContext(ctx, query).Scan(
		&counts.Pending, &counts.Enqueued, &counts.Sent, &counts.Failed,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}
	return &counts, nil
}

// queryEvents runs a multi-row event query and scans the results.
func (r *PostgreSQLOutboxEventRepository) queryEvents(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*domain.OutboxEvent, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent

		err := rows.Scan(&event.ID, &event.Topic, &event.Key, &event.Payload, &event.DedupeKey,
			&event.Status, &event.Attempts, &event.LastError,
			&event.CreatedAt, &event.EnqueuedAt, &event.SentAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}

	return events, nil
}

// scanPostgresOutboxEvent scans a single event row.
func scanPostgresOutboxEvent(row *sql.Row) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	err := row.Scan(&event.ID, &event.Topic, &event.Key, &event.Payload, &event.DedupeKey,
		&event.Status, &event.Attempts, &event.LastError,
		&event.CreatedAt, &event.EnqueuedAt, &event.SentAt)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// requireRowAffected returns notAffectedErr when the statement matched no rows.
func requireRowAffected(result sql.Result, notAffectedErr error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notAffectedErr
	}
	return nil
}
