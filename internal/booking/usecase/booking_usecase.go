// Package usecase implements the booking business logic, including the
// cancellation saga.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/booking/domain"
	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/metrics"
	"github.com/allisson/bookings/internal/saga"

	outboxUseCase "github.com/allisson/bookings/internal/outbox/usecase"
	promotionDomain "github.com/allisson/bookings/internal/promotion/domain"
)

// BookingRepository defines booking repository operations
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.Booking, error)
}

// PromotionRedeemer consumes and releases promotion uses.
type PromotionRedeemer interface {
	Consume(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
}

// PaymentRefunder refunds the payment attached to a booking.
type PaymentRefunder interface {
	RefundForBooking(ctx context.Context, bookingID uuid.UUID) error
}

// EventEmitter records outbox events.
type EventEmitter interface {
	EmitInTx(ctx context.Context, input outboxUseCase.EmitInput) outboxUseCase.EmitResult
}

// BookingUsecase implements the booking operations.
type BookingUsecase struct {
	txManager    database.TxManager
	bookingRepo  BookingRepository
	promotions   PromotionRedeemer
	payments     PaymentRefunder
	producer     EventEmitter
	orchestrator *saga.Orchestrator
	metrics      metrics.BusinessMetrics
	logger       *slog.Logger
}

// NewBookingUsecase creates a new BookingUsecase.
func NewBookingUsecase(
	txManager database.TxManager,
	bookingRepo BookingRepository,
	promotions PromotionRedeemer,
	payments PaymentRefunder,
	producer EventEmitter,
	orchestrator *saga.Orchestrator,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *BookingUsecase {
	return &BookingUsecase{
		txManager:    txManager,
		bookingRepo:  bookingRepo,
		promotions:   promotions,
		payments:     payments,
		producer:     producer,
		orchestrator: orchestrator,
		metrics:      businessMetrics,
		logger:       logger,
	}
}

// GetBooking returns a booking by id.
func (u *BookingUsecase) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return u.bookingRepo.GetByID(ctx, id)
}

// ListBookings returns a user's bookings with pagination.
func (u *BookingUsecase) ListBookings(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.Booking, error) {
	return u.bookingRepo.ListByUser(ctx, userID, offset, limit)
}

// CancelBooking runs the cancellation saga:
//
//  1. mark the booking cancelled (guarded status transition), compensated by
//     reverting to confirmed;
//  2. release the promotion redemption if the booking used one, compensated
//     by re-consuming it;
//  3. refund the payment through the provider gateway; a successful refund is
//     never auto-reversed, so this step has no compensation;
//  4. record the booking.cancelled outbox event in the finalizing transaction
//     (best-effort, cannot fail the saga).
//
// A booking that is already cancelled converges: the call succeeds without
// re-running the saga, which keeps retried cancellations harmless.
func (u *BookingUsecase) CancelBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	start := time.Now()

	booking, err := u.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusCancelled {
		return booking, nil
	}
	if !booking.Cancellable() {
		return nil, domain.ErrBookingNotCancellable
	}

	result := u.orchestrator.Execute(ctx, "booking_cancellation", u.cancellationSteps(booking))
	u.recordCancelMetrics(ctx, result.Success, time.Since(start))

	if !result.Success {
		return nil, result.Err
	}

	return u.bookingRepo.GetByID(ctx, bookingID)
}

// cancellationSteps builds the saga for one booking.
func (u *BookingUsecase) cancellationSteps(booking *domain.Booking) []saga.Step {
	steps := []saga.Step{
		{
			Name: "mark_booking_cancelled",
			Forward: func(ctx context.Context) error {
				return u.bookingRepo.MarkCancelled(ctx, booking.ID)
			},
			Compensate: func(ctx context.Context) error {
				return u.bookingRepo.SetStatus(ctx, booking.ID, domain.BookingStatusConfirmed)
			},
		},
	}

	if booking.PromotionID != nil {
		promotionID := *booking.PromotionID
		steps = append(steps, saga.Step{
			Name: "release_promotion",
			Forward: func(ctx context.Context) error {
				// Release locks the promotion row, so it needs a transaction.
				return u.txManager.WithTx(ctx, func(ctx context.Context) error {
					return u.promotions.Release(ctx, promotionID)
				})
			},
			Compensate: func(ctx context.Context) error {
				err := u.promotions.Consume(ctx, promotionID)
				if errors.Is(err, promotionDomain.ErrPromotionExhausted) {
					// Another redemption took the freed use; the release
					// stands and the counts remain consistent.
					return nil
				}
				return err
			},
		})
	}

	steps = append(steps, saga.Step{
		Name: "refund_payment",
		Forward: func(ctx context.Context) error {
			return u.payments.RefundForBooking(ctx, booking.ID)
		},
	})

	steps = append(steps, saga.Step{
		Name: "emit_cancellation_event",
		Forward: func(ctx context.Context) error {
			return u.txManager.WithTx(ctx, func(ctx context.Context) error {
				u.emitCancelledEvent(ctx, booking)
				return nil
			})
		},
	})

	return steps
}

// emitCancelledEvent records the outbox event. Emission is best-effort: a
// failure is reported in the EmitResult and logged by the producer, never
// propagated into the saga.
func (u *BookingUsecase) emitCancelledEvent(ctx context.Context, booking *domain.Booking) {
	event := domain.CancelledEvent{
		Type:        domain.EventTypeBookingCancelled,
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		AmountCents: booking.AmountCents,
		Currency:    booking.Currency,
		CancelledAt: time.Now().UTC(),
	}

	result := u.producer.EmitInTx(ctx, outboxUseCase.EmitInput{
		Topic:     "bookings",
		Key:       booking.ID.String(),
		Payload:   event,
		DedupeKey: "booking-cancelled-" + booking.ID.String(),
	})
	if !result.Emitted && u.logger != nil {
		u.logger.Warn("cancellation event not recorded",
			slog.String("booking_id", booking.ID.String()),
			slog.Any("error", result.Err),
		)
	}
}

// recordCancelMetrics records the cancellation outcome.
func (u *BookingUsecase) recordCancelMetrics(ctx context.Context, success bool, elapsed time.Duration) {
	if u.metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	u.metrics.RecordOperation(ctx, "booking", "cancel", status)
	u.metrics.RecordDuration(ctx, "booking", "cancel", elapsed, status)
}
