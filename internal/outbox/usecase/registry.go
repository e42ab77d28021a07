// Package usecase implements the outbox business logic: producing events in
// the business transaction, dispatching them to the durable queue and
// executing registered handlers.
package usecase

import (
	"context"
	"sync"

	"github.com/allisson/bookings/internal/outbox/domain"
)

// EventHandler processes a single delivered event. Handlers run at-least-once
// and must therefore be idempotent.
type EventHandler func(ctx context.Context, event *domain.OutboxEvent) error

// Registry maps payload event types to handler functions. It is populated
// explicitly at startup by feature modules; there is no reflection-based
// discovery. An event type with zero handlers is not an error, which lets a
// producer ship before its consumer.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]EventHandler),
	}
}

// Register appends handlers for the given event type.
func (r *Registry) Register(eventType string, handlers ...EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handlers...)
}

// HandlersFor returns the handlers registered for the given event type.
func (r *Registry) HandlersFor(eventType string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[eventType]
}
