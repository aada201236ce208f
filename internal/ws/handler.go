// Package ws streams bus events to browser clients over WebSocket.
package ws

import (
	"context"
	"net/http"

	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler provides the WebSocket live feed endpoint.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger
	unsub  func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to all bus topics.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/feed", h.handleFeed)
}

// Close detaches the handler from the bus.
func (h *Handler) Close() {
	if h.unsub != nil {
		h.unsub()
	}
}

// handleFeed upgrades the connection to WebSocket and streams bus events.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents fans every bus event out to connected clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.unsub = h.bus.SubscribeAll(func(_ context.Context, event plugin.Event) {
		h.hub.Broadcast(Message{
			Type:      event.Topic,
			ID:        uuid.New().String(),
			Timestamp: event.Timestamp,
			Data:      event.Payload,
		})
	})

	h.logger.Info("subscribed to bus events for WebSocket broadcasting")
}
