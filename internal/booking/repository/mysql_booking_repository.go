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

// MySQLBookingRepository handles booking persistence for MySQL
type MySQLBookingRepository struct {
	db *sql.DB
}

// NewMySQLBookingRepository creates a new MySQLBookingRepository
func NewMySQLBookingRepository(db *sql.DB) *MySQLBookingRepository {
	return &MySQLBookingRepository{
		db: db,
	}
}

const mysqlBookingColumns = `id, user_id, status, amount_cents, currency, promotion_id, created_at, updated_at`

// Create inserts a new booking.
func (r *MySQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO bookings
			  (id, user_id, status, amount_cents, currency, promotion_id, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())`

	idBytes, err := booking.ID.MarshalBinary()
	if err != nil {
		return err
	}
	userIDBytes, err := booking.UserID.MarshalBinary()
	if err != nil {
		return err
	}
	var promotionIDBytes []byte
	if booking.PromotionID != nil {
		promotionIDBytes, err = booking.PromotionID.MarshalBinary()
		if err != nil {
			return err
		}
	}

	_, err = querier.ExecContext(ctx, query, idBytes, userIDBytes,
		booking.Status, booking.AmountCents, booking.Currency, promotionIDBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to create booking")
	}
	return nil
}

// GetByID retrieves a booking by its id.
func (r *MySQLBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlBookingColumns + ` FROM bookings WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	booking, err := scanMySQLBooking(querier.QueryRowContext(ctx, query, idBytes))
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
func (r *MySQLBookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings
			  SET status = ?, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query,
		domain.BookingStatusCancelled, idBytes, domain.BookingStatusConfirmed)
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
func (r *MySQLBookingRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings SET status = ?, updated_at = NOW() WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query, status, idBytes)
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
func (r *MySQLBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlBookingColumns + `
			  FROM bookings
			  WHERE user_id = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	userIDBytes, err := userID.MarshalBinary()
	if err != nil {
		return nil, err
	}

	rows, err := querier.QueryContext(ctx, query, userIDBytes, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list bookings")
	}
	defer func() { _ = rows.Close() }()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanMySQLBookingRow(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan booking")
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// scanMySQLBooking scans a single booking row.
func scanMySQLBooking(row *sql.Row) (*domain.Booking, error) {
	var booking domain.Booking
	var idBytes, userIDBytes, promotionIDBytes []byte

	err := row.Scan(&idBytes, &userIDBytes, &booking.Status,
		&booking.AmountCents, &booking.Currency, &promotionIDBytes,
		&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return fillMySQLBookingIDs(&booking, idBytes, userIDBytes, promotionIDBytes)
}

// scanMySQLBookingRow scans a booking from a multi-row result set.
func scanMySQLBookingRow(rows *sql.Rows) (*domain.Booking, error) {
	var booking domain.Booking
	var idBytes, userIDBytes, promotionIDBytes []byte

	err := rows.Scan(&idBytes, &userIDBytes, &booking.Status,
		&booking.AmountCents, &booking.Currency, &promotionIDBytes,
		&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return fillMySQLBookingIDs(&booking, idBytes, userIDBytes, promotionIDBytes)
}

// fillMySQLBookingIDs decodes the BINARY(16) id columns.
func fillMySQLBookingIDs(booking *domain.Booking, idBytes, userIDBytes, promotionIDBytes []byte) (*domain.Booking, error) {
	if err := booking.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	if err := booking.UserID.UnmarshalBinary(userIDBytes); err != nil {
		return nil, err
	}
	if len(promotionIDBytes) > 0 {
		var promotionID uuid.UUID
		if err := promotionID.UnmarshalBinary(promotionIDBytes); err != nil {
			return nil, err
		}
		booking.PromotionID = &promotionID
	}
	return booking, nil
}
