// Package repository provides data persistence implementations for payments.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/payment/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// MySQLPaymentRepository handles payment persistence for MySQL
type MySQLPaymentRepository struct {
	db *sql.DB
}

// NewMySQLPaymentRepository creates a new MySQLPaymentRepository
func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{
		db: db,
	}
}

const mysqlPaymentColumns = `id, booking_id, amount_cents, currency, status, provider_ref, created_at, updated_at`

// Create inserts a new payment.
func (r *MySQLPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO payments
			  (id, booking_id, amount_cents, currency, status, provider_ref, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())`

	idBytes, err := payment.ID.MarshalBinary()
	if err != nil {
		return err
	}
	bookingIDBytes, err := payment.BookingID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, bookingIDBytes,
		payment.AmountCents, payment.Currency, payment.Status, payment.ProviderRef)
	if err != nil {
		return apperrors.Wrap(err, "failed to create payment")
	}
	return nil
}

// GetByID retrieves a payment by its id.
func (r *MySQLPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlPaymentColumns + ` FROM payments WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment")
	}
	return payment, nil
}

// GetByBookingID retrieves the payment attached to a booking.
func (r *MySQLPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlPaymentColumns + ` FROM payments WHERE booking_id = ?`

	bookingIDBytes, err := bookingID.MarshalBinary()
	if err != nil {
		return nil, err
	}

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, bookingIDBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by booking")
	}
	return payment, nil
}

// MarkRefunded transitions a captured payment to refunded. The status guard
// makes the refund idempotent under retried saga compensations.
func (r *MySQLPaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, providerRef string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE payments
			  SET status = ?, provider_ref = ?, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query,
		domain.PaymentStatusRefunded, providerRef, idBytes, domain.PaymentStatusCaptured)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark payment refunded")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotRefundable
	}
	return nil
}

// UpdateStatus sets the payment status unconditionally.
func (r *MySQLPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query, status, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update payment status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// scanMySQLPayment scans a single payment row.
func scanMySQLPayment(row *sql.Row) (*domain.Payment, error) {
	var payment domain.Payment
	var idBytes, bookingIDBytes []byte

	err := row.Scan(&idBytes, &bookingIDBytes, &payment.AmountCents,
		&payment.Currency, &payment.Status, &payment.ProviderRef,
		&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := payment.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	if err := payment.BookingID.UnmarshalBinary(bookingIDBytes); err != nil {
		return nil, err
	}
	return &payment, nil
}
