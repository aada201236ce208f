// Package testutil provides shared helpers and fixtures for Chronicle tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/chronicle/internal/store"
	"github.com/HerbHall/chronicle/pkg/models"
	"github.com/HerbHall/chronicle/pkg/plugin"
)

// NewStore opens a SQLite store in a per-test temp directory and closes it
// on cleanup.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// MockBus is a plugin.EventBus that records published events for assertions.
// Subscriptions are honored synchronously, including for PublishAsync, so
// tests need no sleeps.
type MockBus struct {
	mu       sync.Mutex
	events   []plugin.Event
	handlers map[string][]plugin.EventHandler
	allSubs  []plugin.EventHandler
}

// Compile-time interface guard.
var _ plugin.EventBus = (*MockBus)(nil)

// NewMockBus creates an empty MockBus.
func NewMockBus() *MockBus {
	return &MockBus{handlers: make(map[string][]plugin.EventHandler)}
}

func (b *MockBus) Publish(ctx context.Context, event plugin.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	hs := append([]plugin.EventHandler{}, b.handlers[event.Topic]...)
	hs = append(hs, b.allSubs...)
	b.mu.Unlock()

	for _, h := range hs {
		h(ctx, event)
	}
	return nil
}

func (b *MockBus) PublishAsync(ctx context.Context, event plugin.Event) {
	_ = b.Publish(ctx, event)
}

func (b *MockBus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return func() {}
}

func (b *MockBus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, handler)
	return func() {}
}

// Events returns a copy of all published events.
func (b *MockBus) Events() []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]plugin.Event{}, b.events...)
}

// EventsByTopic returns published events matching the topic.
func (b *MockBus) EventsByTopic(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// NewRecord returns a Record with sensible defaults, suitable for test fixtures.
func NewRecord(opts ...func(*models.Record)) models.Record {
	r := models.Record{
		ID:        1,
		Fields:    map[string]any{"text": "hello"},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithID sets the record identifier.
func WithID(id int64) func(*models.Record) {
	return func(r *models.Record) { r.ID = id }
}

// WithField sets a single field on the record.
func WithField(key string, value any) func(*models.Record) {
	return func(r *models.Record) {
		if r.Fields == nil {
			r.Fields = map[string]any{}
		}
		r.Fields[key] = value
	}
}

// WithFields replaces the record's field map.
func WithFields(fields map[string]any) func(*models.Record) {
	return func(r *models.Record) { r.Fields = fields }
}
