// Package repository provides data persistence implementations for bookings.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/booking/domain"
	"github.com/allisson/bookings/internal/database"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// PostgreSQLBookingRepository handles booking persistence for PostgreSQL
type PostgreSQLBookingRepository struct {
	db *sql.DB
}

// NewPostgreSQLBookingRepository creates a new PostgreSQLBookingRepository
func NewPostgreSQLBookingRepository(db *sql.DB) *PostgreSQLBookingRepository {
	return &PostgreSQLBookingRepository{
		db: db,
	}
}

const postgresBookingColumns = `id, user_id, status, amount_cents, currency, promotion_id, created_at, updated_at`

// Create inserts a new booking.
func (r *PostgreSQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO bookings
			  (id, user_id, status, amount_cents, currency, promotion_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, booking.ID, booking.UserID,
		booking.Status, booking.AmountCents, booking.Currency, booking.PromotionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to create booking")
	}
	return nil
}

// GetByID retrieves a booking by its id.
func (r *PostgreSQLBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresBookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanPostgresBooking(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get booking")
	}
	return booking, nil
}

// MarkCancelled transitions a confirmed booking to cancelled. The status
// guard makes cancellation a compare-and-swap: a concurrent or repeated
// cancellation finds zero rows and gets ErrBookingNotCancellable.
func (r *PostgreSQLBookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query,
		domain.BookingStatusCancelled, id, domain.BookingStatusConfirmed)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark booking cancelled")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrBookingNotCancellable
	}
	return nil
}

// SetStatus sets the booking status unconditionally, used by saga
// compensation to revert a cancellation.
func (r *PostgreSQLBookingRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, status, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to set booking status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// ListByUser retrieves bookings for a user with pagination.
func (r *PostgreSQLBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresBookingColumns + `
			  FROM bookings
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list bookings")
	}
	defer func() { _ = rows.Close() }()

	var bookings []*domain.Booking
	for rows.Next() {
		var booking domain.Booking
		err := rows.Scan(&booking.ID, &booking.UserID, &booking.Status,
			&booking.AmountCents, &booking.Currency, &booking.PromotionID,
			&booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan booking")
		}
		bookings = append(bookings, &booking)
	}
	return bookings, rows.Err()
}

// scanPostgresBooking scans a single booking row.
func scanPostgresBooking(row *sql.Row) (*domain.Booking, error) {
	var booking domain.Booking
	err := row.Scan(&booking.ID, &booking.UserID, &booking.Status,
		&booking.AmountCents, &booking.Currency, &booking.PromotionID,
		&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
