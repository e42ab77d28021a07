// Package http provides the administrative HTTP surface for the outbox.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/httputil"
	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/outbox/http/dto"

	outboxUseCase "github.com/allisson/bookings/internal/outbox/usecase"
)

// OutboxHandler handles administrative HTTP requests for outbox events.
type OutboxHandler struct {
	dispatcher *outboxUseCase.Dispatcher
	outboxRepo outboxUseCase.OutboxEventRepository
	logger     *slog.Logger
}

// NewOutboxHandler creates a new outbox handler.
func NewOutboxHandler(
	dispatcher *outboxUseCase.Dispatcher,
	outboxRepo outboxUseCase.OutboxEventRepository,
	logger *slog.Logger,
) *OutboxHandler {
	return &OutboxHandler{
		dispatcher: dispatcher,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// ListHandler lists outbox events with optional status/topic filters.
// GET /v1/outbox/events?status=failed&topic=bookings&offset=0&limit=50
func (h *OutboxHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	status := c.Query("status")
	if status != "" && !slices.Contains(domain.ValidStatuses(), status) {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid status %q", status), h.logger)
		return
	}

	events, err := h.outboxRepo.List(c.Request.Context(), domain.ListFilter{
		Status: status,
		Topic:  c.Query("topic"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(events, offset, limit))
}

// GetHandler retrieves a single outbox event.
// GET /v1/outbox/events/:id
func (h *OutboxHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	event, err := h.outboxRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}

// RetryHandler resets one failed event to pending and re-dispatches it.
// POST /v1/outbox/events/:id/retry
func (h *OutboxHandler) RetryHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.dispatcher.RetryEvent(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	event, err := h.outboxRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}

// RetryDeadLettersHandler resets failed events under the attempt ceiling.
// POST /v1/outbox/retry-dead-letters?max_attempts=5
func (h *OutboxHandler) RetryDeadLettersHandler(c *gin.Context) {
	maxAttempts, ok := h.parsePositiveQuery(c, "max_attempts")
	if !ok {
		return
	}

	retried, err := h.dispatcher.RetryDeadLetters(c.Request.Context(), maxAttempts)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.BulkOperationResponse{Count: int64(retried)})
}

// DispatchAllHandler dispatches a batch of pending events immediately.
// POST /v1/outbox/dispatch?batch_size=100
func (h *OutboxHandler) DispatchAllHandler(c *gin.Context) {
	batchSize, ok := h.parsePositiveQuery(c, "batch_size")
	if !ok {
		return
	}

	dispatched, err := h.dispatcher.DispatchAll(c.Request.Context(), batchSize)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.BulkOperationResponse{Count: int64(dispatched)})
}

// DeleteHandler removes a single outbox event.
// DELETE /v1/outbox/events/:id
func (h *OutboxHandler) DeleteHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.outboxRepo.Delete(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// CleanupHandler deletes sent events older than the given number of hours.
// POST /v1/outbox/cleanup?older_than_hours=24
func (h *OutboxHandler) CleanupHandler(c *gin.Context) {
	hours, ok := h.parsePositiveQuery(c, "older_than_hours")
	if !ok {
		return
	}
	if hours == 0 {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("older_than_hours is required"), h.logger)
		return
	}

	deleted, err := h.dispatcher.CleanupSent(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.BulkOperationResponse{Count: deleted})
}

// StatsHandler reports event counts per status.
// GET /v1/outbox/stats
func (h *OutboxHandler) StatsHandler(c *gin.Context) {
	counts, err := h.dispatcher.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToResponse(counts))
}

// parseID extracts and validates the :id path parameter.
func (h *OutboxHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid event id: %w", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// parsePositiveQuery parses an optional non-negative integer query parameter;
// zero means "use the configured default".
func (h *OutboxHandler) parsePositiveQuery(c *gin.Context, name string) (int, bool) {
	raw := c.DefaultQuery(name, "0")
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid %s parameter: must be a non-negative integer", name), h.logger)
		return 0, false
	}
	return value, true
}
