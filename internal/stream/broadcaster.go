package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Broadcaster fans post events out to connected WebSocket clients. A
// client may subscribe to the full firehose or to a single author's
// events.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*subscriber
}

// subscriber guards a connection with its own write lock; gorilla
// connections do not support concurrent writers.
type subscriber struct {
	writeMu sync.Mutex
	filter  string // author filter, "" = all
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[*websocket.Conn]*subscriber),
	}
}

// Subscribe registers a connection. authorID narrows delivery to one
// author's events; pass "" for everything.
func (b *Broadcaster) Subscribe(conn *websocket.Conn, authorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = &subscriber{filter: authorID}
}

// Unsubscribe removes a connection. Safe to call for connections that
// were never subscribed.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Broadcast delivers an event to every matching subscriber. Write
// failures are logged and left for the read loop to clean up on
// disconnect.
func (b *Broadcaster) Broadcast(event *PostEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.connections) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal post event", "error", err, "type", event.Type)
		return
	}

	for conn, sub := range b.connections {
		if sub.filter != "" && sub.filter != event.AuthorID {
			continue
		}
		sub.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		sub.writeMu.Unlock()
		if err != nil {
			slog.Warn("failed to send post event to websocket client",
				"error", err,
				"type", event.Type)
		}
	}
}

// ConnectionCount returns the number of active subscriptions.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}
