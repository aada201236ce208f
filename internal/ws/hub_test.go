package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/chronicle/internal/event"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(remote string) *Client {
	return &Client{
		conn:   nil, // Not needed for hub tests
		remote: remote,
		send:   make(chan Message, 256),
		logger: testLogger(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("10.0.0.1:1234")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Send channel is closed after unregister.
	if _, ok := <-client.send; ok {
		t.Error("client.send channel is not closed")
	}

	// Unregister of an unknown client must not panic.
	hub.Unregister(newTestClient("10.0.0.2:1234"))
}

func TestBroadcast_DeliversToAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	c1 := newTestClient("a")
	c2 := newTestClient("b")
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(Message{Type: "records.record.created", ID: "1"})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != "records.record.created" {
				t.Errorf("Type = %q", msg.Type)
			}
		default:
			t.Errorf("client %s received nothing", c.remote)
		}
	}
}

func TestBroadcast_SlowClientDropsMessage(t *testing.T) {
	hub := NewHub(testLogger())
	slow := &Client{remote: "slow", send: make(chan Message, 1), logger: testLogger()}
	hub.Register(slow)

	// Fill the buffer, then broadcast again: must not block.
	hub.Broadcast(Message{ID: "1"})
	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{ID: "2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}

	if got := len(slow.send); got != 1 {
		t.Errorf("buffered messages = %d, want 1 (second dropped)", got)
	}
}

func TestFeed_EndToEnd(t *testing.T) {
	bus := event.NewBus(testLogger())
	h := NewHandler(bus, testLogger())
	defer h.Close()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/api/v1/ws/feed"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the hub to register the client before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := bus.Publish(ctx, plugin.Event{
		Topic:     "records.record.created",
		Source:    "records",
		Timestamp: time.Now(),
		Payload:   map[string]any{"id": 1},
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var msg Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Type != "records.record.created" {
		t.Errorf("Type = %q, want records.record.created", msg.Type)
	}
	if msg.ID == "" {
		t.Error("ID must be set")
	}
}
