package event

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Handler processes one published event. Returned errors are logged by the
// bus; they never propagate to the publisher.
type Handler func(ctx context.Context, e Event) error

// Bus is an in-process publish/subscribe dispatcher. Handlers run on the
// publisher's goroutine in registration order; anything slow (email, push)
// should hand off internally. A nil *Bus is a valid no-op publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	catchAll []Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a single event name.
func (b *Bus) Subscribe(eventName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], h)
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, h)
}

// Publish dispatches e to all matching handlers, logging failures.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	matched := b.handlers[e.EventName()]
	all := b.catchAll
	b.mu.RUnlock()

	for _, h := range matched {
		b.run(ctx, h, e)
	}
	for _, h := range all {
		b.run(ctx, h, e)
	}
}

func (b *Bus) run(ctx context.Context, h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			zctx.From(ctx).Error("Event handler panicked",
				zap.String("event", e.EventName()),
				zap.Any("panic", rec))
		}
	}()
	if err := h(ctx, e); err != nil {
		zctx.From(ctx).Warn("Event handler failed",
			zap.String("event", e.EventName()),
			zap.Error(err))
	}
}
