package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublish_Synchronous(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []string
	bus.Subscribe("a.topic", func(_ context.Context, e plugin.Event) {
		got = append(got, e.Topic)
	})

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "a.topic"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(got))
	}
}

func TestPublish_OnlyMatchingTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var calls int
	bus.Subscribe("wanted", func(context.Context, plugin.Event) { calls++ })

	bus.Publish(context.Background(), plugin.Event{Topic: "other"})
	if calls != 0 {
		t.Errorf("handler called %d times for unrelated topic", calls)
	}
}

func TestSubscribeAll_SeesEveryTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var calls int
	unsub := bus.SubscribeAll(func(context.Context, plugin.Event) { calls++ })

	bus.Publish(context.Background(), plugin.Event{Topic: "x"})
	bus.Publish(context.Background(), plugin.Event{Topic: "y"})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	unsub()
	bus.Publish(context.Background(), plugin.Event{Topic: "z"})
	if calls != 2 {
		t.Errorf("calls after unsubscribe = %d, want 2", calls)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	bus := NewBus(zap.NewNop())

	unsub := bus.Subscribe("t", func(context.Context, plugin.Event) {})
	unsub()
	unsub() // second call must not panic or remove another handler

	var calls int
	bus.Subscribe("t", func(context.Context, plugin.Event) { calls++ })
	bus.Publish(context.Background(), plugin.Event{Topic: "t"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPublishAsync_DispatchesAllHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)
	handler := func(context.Context, plugin.Event) {
		calls.Add(1)
		wg.Done()
	}
	bus.Subscribe("t", handler)
	bus.SubscribeAll(handler)

	bus.PublishAsync(context.Background(), plugin.Event{Topic: "t"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestPublish_PanickingHandlerIsContained(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var after int
	bus.Subscribe("t", func(context.Context, plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(context.Context, plugin.Event) { after++ })

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "t"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if after != 1 {
		t.Errorf("handler after panicking one ran %d times, want 1", after)
	}
}
