// Package event carries record, generation, and tool-call notifications
// between plugins through an in-memory plugin.EventBus.
package event

import (
	"context"
	"sync"

	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// Bus is the in-memory event bus. Publish runs handlers in the caller's
// goroutine; PublishAsync hands each handler its own goroutine, which is
// what hot paths (record writes, streaming generations) use so a slow
// subscriber cannot stall them. A panicking handler is logged and
// contained, never propagated to the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription // keyed by topic; "" holds SubscribeAll entries
	nextID uint64
	logger *zap.Logger
}

// wildcard is the internal topic key for SubscribeAll handlers.
const wildcard = ""

type subscription struct {
	id uint64
	fn plugin.EventHandler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// snapshot copies the handlers matching a topic so dispatch runs without
// holding the lock. Unsubscribing during dispatch affects later events
// only.
func (b *Bus) snapshot(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscription, 0, len(b.subs[topic])+len(b.subs[wildcard]))
	out = append(out, b.subs[topic]...)
	if topic != wildcard {
		out = append(out, b.subs[wildcard]...)
	}
	return out
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, s := range b.snapshot(event.Topic) {
		b.safeCall(ctx, s.fn, event)
	}
	return nil
}

// PublishAsync dispatches an event to all matching handlers without
// waiting for them.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	for _, s := range b.snapshot(event.Topic) {
		go b.safeCall(ctx, s.fn, event)
	}
}

// Subscribe registers a handler for a single topic. The returned function
// removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	return b.add(topic, handler)
}

// SubscribeAll registers a handler that receives every event regardless
// of topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	return b.add(wildcard, handler)
}

func (b *Bus) add(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.subs[topic]
		for i, s := range entries {
			if s.id == id {
				b.subs[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
