package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lumen-social/lumen/internal/middleware"
	"github.com/lumen-social/lumen/internal/stream"
)

// WSHandlers upgrades feed event subscriptions to WebSocket.
type WSHandlers struct {
	broadcaster *stream.Broadcaster
	upgrader    websocket.Upgrader
}

// NewWSHandlers creates a WSHandlers instance. allowedOrigins is the
// CORS allowlist applied to the upgrade handshake; empty allows only
// same-origin browsers.
func NewWSHandlers(broadcaster *stream.Broadcaster, allowedOrigins []string) *WSHandlers {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &WSHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return origins[origin]
			},
		},
	}
}

// FeedEvents handles GET /ws/feed. An optional authorId query
// parameter narrows delivery to one author's events. The connection is
// held open until the client disconnects; the read loop exists only to
// notice the close.
func (h *WSHandlers) FeedEvents(w http.ResponseWriter, r *http.Request) {
	authorID := r.URL.Query().Get("authorId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.WarnContext(r.Context(), "websocket upgrade failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()))
		return
	}

	h.broadcaster.Subscribe(conn, authorID)
	slog.DebugContext(r.Context(), "feed event subscriber connected",
		"author_filter", authorID,
		"connections", h.broadcaster.ConnectionCount())

	go h.readLoop(conn)
}

func (h *WSHandlers) readLoop(conn *websocket.Conn) {
	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
