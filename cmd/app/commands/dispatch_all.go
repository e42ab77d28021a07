package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
)

// RunDispatchAll dispatches a batch of pending outbox events immediately,
// without waiting for the poller. Supports text/JSON output formats.
func RunDispatchAll(
	ctx context.Context,
	dispatcher *outboxUsecase.Dispatcher,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	format string,
) error {
	if batchSize < 0 {
		return fmt.Errorf("batch-size must be a non-negative number, got: %d", batchSize)
	}

	logger.Info("dispatching pending outbox events", slog.Int("batch_size", batchSize))

	dispatched, err := dispatcher.DispatchAll(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to dispatch outbox events: %w", err)
	}

	if format == "json" {
		outputCountJSON(writer, "dispatched", int64(dispatched))
	} else {
		fmt.Fprintf(writer, "Dispatched %d pending event(s)\n", dispatched)
	}

	logger.Info("dispatch completed", slog.Int("dispatched", dispatched))
	return nil
}

// outputCountJSON writes a single-count result in JSON format.
func outputCountJSON(writer io.Writer, key string, count int64) {
	result := map[string]any{key: count}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(writer, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(writer, string(jsonBytes))
}
