// Package service provides integrations with external payment providers.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RefundRequest describes a refund to issue against a captured payment.
type RefundRequest struct {
	PaymentID   uuid.UUID
	ProviderRef string
	AmountCents int64
	Currency    string
	// Reference deduplicates refunds on the provider side; providers treat a
	// repeated reference as the same refund.
	Reference string
}

// RefundResult carries the provider's acknowledgement.
type RefundResult struct {
	ProviderRef string
}

// Gateway abstracts the payment provider. Implementations must be safe for
// concurrent use and should honor the request Reference for deduplication.
type Gateway interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// LoggingGateway is a stand-in provider for environments without a real
// payment backend. It acknowledges every refund and logs it.
type LoggingGateway struct {
	logger *slog.Logger
}

// NewLoggingGateway creates a new LoggingGateway.
func NewLoggingGateway(logger *slog.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

// Refund acknowledges the refund without moving money.
func (g *LoggingGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if g.logger != nil {
		g.logger.Info("refund issued",
			slog.String("payment_id", req.PaymentID.String()),
			slog.Int64("amount_cents", req.AmountCents),
			slog.String("currency", req.Currency),
			slog.String("reference", req.Reference),
		)
	}
	return &RefundResult{ProviderRef: fmt.Sprintf("refund-%s", req.Reference)}, nil
}
