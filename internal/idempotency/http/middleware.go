// Package http provides the idempotency middleware for mutating endpoints.
package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/httputil"
	"github.com/allisson/bookings/internal/idempotency/domain"
	"github.com/allisson/bookings/internal/idempotency/usecase"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// errKeyTooLong rejects keys that would not fit the storage column.
var errKeyTooLong = apperrors.Wrap(apperrors.ErrInvalidInput, "idempotency key exceeds 255 characters")

const (
	// HeaderIdempotencyKey carries the client-chosen deduplication key.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderClientID identifies the caller; keys are scoped per caller so two
	// tenants reusing the same key never collide.
	HeaderClientID = "X-Client-Id"
	// HeaderIdempotentReplay marks a response that was served from a stored
	// record instead of re-executing the operation.
	HeaderIdempotentReplay = "Idempotent-Replay"

	defaultCallerID = "anonymous"
	maxKeyLength    = 255
)

// bodyCaptureWriter tees the response body so the middleware can store it for
// replay after the handler finishes.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware wraps mutating endpoints with the idempotency protocol:
// claim the key before the handler runs, replay the stored response when a
// completed record exists, reject concurrent executions, and finalize the
// record with the handler's response afterwards.
//
// When the client sends no Idempotency-Key header a random key is generated,
// which keeps the endpoint code uniform but provides no cross-request
// deduplication for that call.
func Middleware(idempotencyUseCase *usecase.IdempotencyUsecase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = uuid.Must(uuid.NewV7()).String()
		}
		if len(key) > maxKeyLength {
			httputil.HandleValidationErrorGin(c, errKeyTooLong, logger)
			c.Abort()
			return
		}

		callerID := c.GetHeader(HeaderClientID)
		if callerID == "" {
			callerID = defaultCallerID
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			httputil.HandleBadRequestGin(c, err, logger)
			c.Abort()
			return
		}
		// The handler still needs to read the body.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		endpoint := c.Request.Method + " " + c.FullPath()

		out, err := idempotencyUseCase.BeginOrReuse(c.Request.Context(), usecase.BeginInput{
			CallerID: callerID,
			Endpoint: endpoint,
			Key:      key,
			Payload:  body,
		})
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		if out.Mode == usecase.ModeReuse {
			replayStoredResponse(c, out)
			c.Abort()
			return
		}

		if out.Mode == usecase.ModeInProgress {
			httputil.HandleErrorGin(c, domain.ErrKeyInProgress, logger)
			c.Abort()
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		finalize(c, idempotencyUseCase, out.RecordID, writer, logger)
	}
}

// replayStoredResponse writes the stored response of a completed record.
func replayStoredResponse(c *gin.Context, out *usecase.BeginOutput) {
	code := http.StatusOK
	if out.Record.ResponseCode != nil {
		code = *out.Record.ResponseCode
	}

	c.Header(HeaderIdempotentReplay, "true")
	c.Header("Content-Type", "application/json")

	var body string
	if out.Record.Response != nil {
		body = *out.Record.Response
	}
	c.String(code, body)
}

// finalize stores the handler's response. A 5xx response marks the record
// failed so the client can retry with the same key; anything else is stored
// for replay, including 4xx responses, because retrying an invalid request
// must keep yielding the same rejection.
func finalize(c *gin.Context, u *usecase.IdempotencyUsecase, recordID uuid.UUID, writer *bodyCaptureWriter, logger *slog.Logger) {
	statusCode := writer.Status()

	var err error
	if statusCode >= http.StatusInternalServerError {
		err = u.CompleteFailed(c.Request.Context(), recordID, statusCode, "handler returned "+strconv.Itoa(statusCode))
	} else {
		resourceID := c.GetString(ContextResourceID)
		err = u.CompleteOK(c.Request.Context(), recordID, writer.body.String(), statusCode, resourceID)
	}

	if err != nil && logger != nil {
		// The response already went out; the worst case is the next retry
		// re-executes instead of replaying.
		logger.Error("failed to finalize idempotency record",
			slog.String("record_id", recordID.String()),
			slog.Int("status_code", statusCode),
			slog.Any("error", err),
		)
	}
}

// ContextResourceID is the gin context key handlers can set to associate the
// created resource with the idempotency record.
const ContextResourceID = "idempotency_resource_id"
