package ws

import "time"

// Message is the envelope for all live-feed messages. Type carries the
// originating bus topic; Data the event payload as published.
type Message struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
