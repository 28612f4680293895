package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumen-social/lumen/internal/post"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialBroadcaster spins up a WebSocket endpoint that subscribes every
// connection to b, and returns a connected client.
func dialBroadcaster(t *testing.T, b *Broadcaster, authorFilter string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		b.Subscribe(conn, authorFilter)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *PostEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var event PostEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event %q: %v", data, err)
	}
	return &event
}

func waitForSubscribers(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ConnectionCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers, have %d", n, b.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcast_PostCreated(t *testing.T) {
	b := NewBroadcaster()
	conn := dialBroadcaster(t, b, "")
	waitForSubscribers(t, b, 1)

	b.Broadcast(NewPostCreatedEvent(&post.Post{
		ID:       "p1",
		AuthorID: "alice",
		Caption:  "sunrise",
	}))

	event := readEvent(t, conn)
	if event.Type != EventPostCreated {
		t.Errorf("type = %q, want %q", event.Type, EventPostCreated)
	}
	if event.PostID != "p1" || event.AuthorID != "alice" || event.Caption != "sunrise" {
		t.Errorf("unexpected event payload: %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("missing timestamp")
	}
}

func TestBroadcast_AuthorFilter(t *testing.T) {
	b := NewBroadcaster()
	filtered := dialBroadcaster(t, b, "alice")
	waitForSubscribers(t, b, 1)

	// An event from another author is not delivered.
	b.Broadcast(NewEngagementEvent(EventPostLiked, "p2", "bob"))
	// A matching event follows and must be the first thing received.
	b.Broadcast(NewEngagementEvent(EventPostSaved, "p3", "alice"))

	event := readEvent(t, filtered)
	if event.Type != EventPostSaved || event.PostID != "p3" {
		t.Errorf("filtered subscriber received %+v, want the alice event", event)
	}
}

func TestBroadcast_RemovedEventCarriesOnlyID(t *testing.T) {
	b := NewBroadcaster()
	conn := dialBroadcaster(t, b, "")
	waitForSubscribers(t, b, 1)

	b.Broadcast(NewPostRemovedEvent("p9"))

	event := readEvent(t, conn)
	if event.Type != EventPostRemoved || event.PostID != "p9" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.AuthorID != "" || event.Caption != "" {
		t.Errorf("removed event should not leak content: %+v", event)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	conn := dialBroadcaster(t, b, "")
	waitForSubscribers(t, b, 1)

	b.Unsubscribe(nil) // unknown conn is a no-op
	if b.ConnectionCount() != 1 {
		t.Errorf("count = %d after no-op unsubscribe", b.ConnectionCount())
	}

	// The server-side conn is the map key; drain via broadcast to find it.
	b.mu.RLock()
	var serverConn *websocket.Conn
	for c := range b.connections {
		serverConn = c
	}
	b.mu.RUnlock()

	b.Unsubscribe(serverConn)
	if b.ConnectionCount() != 0 {
		t.Errorf("count = %d after unsubscribe, want 0", b.ConnectionCount())
	}
	_ = conn
}

func TestBroadcast_NoSubscribers(t *testing.T) {
	b := NewBroadcaster()
	// Must not panic or block.
	b.Broadcast(NewPostRemovedEvent("p1"))
}

func TestBroadcast_ConcurrentBroadcasters(t *testing.T) {
	b := NewBroadcaster()
	conn := dialBroadcaster(t, b, "")
	waitForSubscribers(t, b, 1)

	// gorilla connections forbid concurrent writers; overlapping
	// Broadcast calls must serialize per connection.
	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				b.Broadcast(NewEngagementEvent(EventPostLiked, "p1", "alice"))
			}
		}()
	}

	for i := 0; i < writers*perWriter; i++ {
		event := readEvent(t, conn)
		if event.Type != EventPostLiked || event.PostID != "p1" {
			t.Fatalf("event %d malformed: %+v", i, event)
		}
	}
	wg.Wait()
}
