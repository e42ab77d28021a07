package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// Config holds JetStream queue configuration.
type Config struct {
	URL     string
	Stream  string
	Subject string
	Durable string
	// MaxDeliver is the delivery attempt ceiling per job.
	MaxDeliver int
	// BackoffDelay is the initial delay of the exponential redelivery backoff.
	BackoffDelay time.Duration
	// Concurrency is the number of jobs processed simultaneously by Consume.
	Concurrency int
	// FetchBatch is the number of messages pulled per fetch.
	FetchBatch int
}

// JetStreamQueue implements Queue and Consumer on top of a NATS JetStream
// stream with file storage, so enqueued jobs survive broker restarts.
type JetStreamQueue struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    Config
	logger *slog.Logger
}

// NewJetStreamQueue connects to NATS and ensures the stream and the durable
// consumer exist with the configured retry policy.
func NewJetStreamQueue(cfg Config, logger *slog.Logger) (*JetStreamQueue, error) {
	if cfg.Stream == "" || cfg.Subject == "" || cfg.Durable == "" {
		return nil, apperrors.New("queue: stream, subject and durable are required")
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.BackoffDelay <= 0 {
		cfg.BackoffDelay = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.FetchBatch <= 0 {
		cfg.FetchBatch = 10
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("bookings-outbox"))
	if err != nil {
		return nil, apperrors.Wrap(err, "queue: failed to connect to nats")
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, apperrors.Wrap(err, "queue: failed to get jetstream context")
	}

	q := &JetStreamQueue{conn: conn, js: js, cfg: cfg, logger: logger}
	if err := q.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := q.ensureConsumer(); err != nil {
		conn.Close()
		return nil, err
	}

	return q, nil
}

// Close closes the underlying NATS connection.
func (q *JetStreamQueue) Close() {
	if q == nil || q.conn == nil {
		return
	}
	q.conn.Close()
}

// Enqueue publishes a job to the stream. The message id combines the dedupe
// key (or event id) with the attempt counter so legitimate re-dispatches are
// not suppressed by the broker's dedupe window.
func (q *JetStreamQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, "queue: failed to marshal job")
	}

	msgID := job.OutboxID.String()
	if job.DedupeKey != "" {
		msgID = job.DedupeKey
	}
	msgID = msgID + ":" + strconv.Itoa(job.Attempt)

	msg := nats.NewMsg(q.cfg.Subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, msgID)

	if _, err := q.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("queue: publish failed: %v", err))
	}
	return nil
}

// Consume pulls jobs from the durable consumer and hands them to the handler.
// Handler errors trigger a negative ack so the stream redelivers with backoff;
// after MaxDeliver attempts the broker stops redelivering and the event stays
// in the failed state for the dead-letter retry job. Blocks until ctx is done.
func (q *JetStreamQueue) Consume(ctx context.Context, handler Handler) error {
	sub, err := q.js.PullSubscribe(q.cfg.Subject, q.cfg.Durable, nats.Bind(q.cfg.Stream, q.cfg.Durable))
	if err != nil {
		return apperrors.Wrap(err, "queue: failed to subscribe")
	}
	defer sub.Unsubscribe() //nolint:errcheck

	sem := make(chan struct{}, q.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(q.cfg.FetchBatch, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if q.logger != nil {
				q.logger.Error("queue fetch failed", slog.Any("error", err))
			}
			continue
		}

		for _, msg := range msgs {
			sem <- struct{}{}
			go func(msg *nats.Msg) {
				defer func() { <-sem }()
				q.handleMessage(ctx, msg, handler)
			}(msg)
		}
	}
}

// handleMessage decodes and processes one message, acking or naking it.
func (q *JetStreamQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// A malformed job can never succeed; terminate it instead of looping.
		if q.logger != nil {
			q.logger.Error("discarding malformed job", slog.Any("error", err))
		}
		_ = msg.Term()
		return
	}

	if err := handler(ctx, job); err != nil {
		if q.logger != nil {
			q.logger.Warn("job failed, scheduling redelivery",
				slog.String("outbox_id", job.OutboxID.String()),
				slog.Any("error", err),
			)
		}
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}

// ensureStream creates or updates the backing stream.
func (q *JetStreamQueue) ensureStream() error {
	_, err := q.js.StreamInfo(q.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return apperrors.Wrap(err, "queue: failed to get stream info")
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:      q.cfg.Stream,
		Subjects:  []string{q.cfg.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		// Keep the broker-side dedupe window short: the outbox status guard is
		// the real duplicate-dispatch protection.
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return apperrors.Wrap(err, "queue: failed to create stream")
	}
	return nil
}

// ensureConsumer creates the durable pull consumer with exponential backoff.
func (q *JetStreamQueue) ensureConsumer() error {
	_, err := q.js.ConsumerInfo(q.cfg.Stream, q.cfg.Durable)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return apperrors.Wrap(err, "queue: failed to get consumer info")
	}

	_, err = q.js.AddConsumer(q.cfg.Stream, &nats.ConsumerConfig{
		Durable:       q.cfg.Durable,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    q.cfg.MaxDeliver,
		BackOff:       exponentialBackoff(q.cfg.BackoffDelay, q.cfg.MaxDeliver),
		FilterSubject: q.cfg.Subject,
		AckWait:       time.Minute,
		MaxAckPending: q.cfg.Concurrency * q.cfg.FetchBatch,
	})
	if err != nil {
		return apperrors.Wrap(err, "queue: failed to create consumer")
	}
	return nil
}

// exponentialBackoff builds the redelivery delay schedule: initial delay
// doubling per attempt. JetStream requires the list to be shorter than
// MaxDeliver.
func exponentialBackoff(initial time.Duration, maxDeliver int) []time.Duration {
	n := maxDeliver - 1
	if n < 1 {
		n = 1
	}
	delays := make([]time.Duration, 0, n)
	delay := initial
	for i := 0; i < n; i++ {
		delays = append(delays, delay)
		delay *= 2
	}
	return delays
}
