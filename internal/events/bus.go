package events

import (
	"context"
	"sync"

	"smiledesign_backend/platform/logger"
)

// InMemoryBus is a process-local event bus. Handlers registered for an
// event name receive every published event of that type. Publish runs
// handlers on a separate goroutine; PublishSync runs them inline.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates an empty in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the named event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. Handler
// errors are logged, never propagated: a failing subscriber must not
// break the publishing request.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	go func() {
		for _, h := range handlers {
			if err := b.dispatch(ctx, h, event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}
	}()
}

// PublishSync dispatches the event inline and returns the first handler error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	for _, h := range b.handlersFor(event.EventName()) {
		if err := b.dispatch(ctx, h, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[eventName]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}

func (b *InMemoryBus) dispatch(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("event handler panicked", "event", event.EventName(), "panic", r)
		}
	}()
	return h.Handle(ctx, event)
}

var _ Bus = (*InMemoryBus)(nil)
