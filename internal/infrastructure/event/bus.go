package event

import (
	"context"
	"sync"

	"github.com/reims/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus implements shared.EventBus with synchronous in-process
// dispatch. A failing handler is logged and does not stop delivery to the
// remaining handlers.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	catchAll []shared.EventHandler
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]shared.EventHandler),
		logger:   logger,
	}
}

// Publish delivers events to every subscribed handler
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		b.mu.RLock()
		targets := make([]shared.EventHandler, 0, len(b.handlers[ev.EventType()])+len(b.catchAll))
		targets = append(targets, b.handlers[ev.EventType()]...)
		targets = append(targets, b.catchAll...)
		b.mu.RUnlock()

		for _, handler := range targets {
			if err := b.dispatch(ctx, handler, ev); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit event types the handler's
// own EventTypes() applies; an empty list subscribes it to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.catchAll = append(b.catchAll, handler)
		return
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

// Unsubscribe removes a handler from every subscription
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, list := range b.handlers {
		b.handlers[t] = removeHandler(list, handler)
	}
	b.catchAll = removeHandler(b.catchAll, handler)
}

// Start marks the bus running
func (b *InMemoryEventBus) Start(context.Context) error {
	b.logger.Info("event bus started")
	return nil
}

// Stop stops the bus. Dispatch is synchronous, so there is nothing to drain.
func (b *InMemoryEventBus) Stop(context.Context) error {
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, ev)
}

func removeHandler(list []shared.EventHandler, handler shared.EventHandler) []shared.EventHandler {
	kept := list[:0]
	for _, h := range list {
		if h != handler {
			kept = append(kept, h)
		}
	}
	return kept
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
