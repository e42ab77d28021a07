package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
)

// RunRetryDeadLetters resets failed outbox events under the attempt ceiling
// back to pending and re-dispatches them. Supports text/JSON output formats.
func RunRetryDeadLetters(
	ctx context.Context,
	dispatcher *outboxUsecase.Dispatcher,
	logger *slog.Logger,
	writer io.Writer,
	maxAttempts int,
	format string,
) error {
	if maxAttempts < 0 {
		return fmt.Errorf("max-attempts must be a non-negative number, got: %d", maxAttempts)
	}

	logger.Info("retrying dead letters", slog.Int("max_attempts", maxAttempts))

	retried, err := dispatcher.RetryDeadLetters(ctx, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to retry dead letters: %w", err)
	}

	if format == "json" {
		outputCountJSON(writer, "retried", int64(retried))
	} else {
		fmt.Fprintf(writer, "Retried %d failed event(s)\n", retried)
	}

	logger.Info("dead letter retry completed", slog.Int("retried", retried))
	return nil
}
