package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
)

// RunOutboxStats prints the number of outbox events per status. Supports
// text/JSON output formats.
func RunOutboxStats(
	ctx context.Context,
	dispatcher *outboxUsecase.Dispatcher,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	counts, err := dispatcher.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get outbox stats: %w", err)
	}

	if format == "json" {
		jsonBytes, err := json.MarshalIndent(counts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(writer, string(jsonBytes))
	} else {
		fmt.Fprintf(writer, "Outbox events by status:\n")
		fmt.Fprintf(writer, "  pending:  %d\n", counts.Pending)
		fmt.Fprintf(writer, "  enqueued: %d\n", counts.Enqueued)
		fmt.Fprintf(writer, "  sent:     %d\n", counts.Sent)
		fmt.Fprintf(writer, "  failed:   %d\n", counts.Failed)
	}

	logger.Info("outbox stats reported",
		slog.Int64("pending", counts.Pending),
		slog.Int64("enqueued", counts.Enqueued),
		slog.Int64("sent", counts.Sent),
		slog.Int64("failed", counts.Failed),
	)
	return nil
}
