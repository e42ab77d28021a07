package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/bookings/internal/outbox/domain"

	appvalidation "github.com/allisson/bookings/internal/validation"
)

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	GetPendingEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	GetFailedEvents(ctx context.Context, maxAttempts int, limit int) ([]*domain.OutboxEvent, error)
	MarkEnqueued(ctx context.Context, id uuid.UUID) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	ResetToPending(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.OutboxEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (*domain.StatusCounts, error)
}

// EmitInput describes an event to be recorded in the outbox. Payload is
// marshalled to JSON and must carry a "type" discriminator the worker uses to
// route the event to handlers.
type EmitInput struct {
	Topic     string
	Key       string
	Payload   any
	DedupeKey string
}

// Validate checks that the event is routable before it is persisted.
func (i EmitInput) Validate() error {
	return appvalidation.WrapValidationError(validation.ValidateStruct(&i,
		validation.Field(&i.Topic, validation.Required, appvalidation.NotBlank),
		validation.Field(&i.Key, validation.Required, appvalidation.NotBlank),
	))
}

// EmitResult reports the outcome of a best-effort emission. Err is informative
// only: the producer never propagates an error that would abort the caller's
// business transaction, because the primary mutation is the thing that must
// not be lost. A dropped event can be regenerated by reconciliation.
type EmitResult struct {
	EventID uuid.UUID
	Emitted bool
	Err     error
}

// Producer writes outbox events. When the context carries an active
// transaction the row joins it, so the event commits and rolls back together
// with the business mutation.
type Producer struct {
	outboxRepo OutboxEventRepository
	logger     *slog.Logger
}

// NewProducer creates a new Producer.
func NewProducer(outboxRepo OutboxEventRepository, logger *slog.Logger) *Producer {
	return &Producer{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// EmitInTx records an event inside the caller's transaction. The context must
// carry the transaction opened by the transaction manager; the repository
// joins it transparently.
func (p *Producer) EmitInTx(ctx context.Context, input EmitInput) EmitResult {
	return p.emit(ctx, input)
}

// Emit records an event outside any transaction.
func (p *Producer) Emit(ctx context.Context, input EmitInput) EmitResult {
	return p.emit(ctx, input)
}

func (p *Producer) emit(ctx context.Context, input EmitInput) EmitResult {
	if err := input.Validate(); err != nil {
		return p.swallow(input, err)
	}

	payload, err := marshalPayload(input.Payload)
	if err != nil {
		return p.swallow(input, err)
	}

	event := &domain.OutboxEvent{
		ID:      uuid.Must(uuid.NewV7()),
		Topic:   input.Topic,
		Key:     input.Key,
		Payload: payload,
		Status:  domain.OutboxEventStatusPending,
	}
	if input.DedupeKey != "" {
		dedupeKey := input.DedupeKey
		event.DedupeKey = &dedupeKey
	}

	if err := p.outboxRepo.Create(ctx, event); err != nil {
		return p.swallow(input, err)
	}

	return EmitResult{EventID: event.ID, Emitted: true}
}

// swallow logs an emission failure and reports it without propagating.
func (p *Producer) swallow(input EmitInput, err error) EmitResult {
	if p.logger != nil {
		p.logger.Error("outbox emission failed",
			slog.String("topic", input.Topic),
			slog.String("key", input.Key),
			slog.Any("error", err),
		)
	}
	return EmitResult{Emitted: false, Err: err}
}

// marshalPayload serializes the payload, passing strings through unchanged.
func marshalPayload(payload any) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
