// Package stream provides WebSocket broadcasting of post lifecycle
// events so clients can refresh feeds without polling.
package stream

import (
	"time"

	"github.com/lumen-social/lumen/internal/post"
)

// Event types sent over the feed event socket.
const (
	EventPostCreated = "post.created"
	EventPostLiked   = "post.liked"
	EventPostSaved   = "post.saved"
	EventPostRemoved = "post.removed"
)

// PostEvent is the wire format for one feed event. Removed posts carry
// only the ID so clients can evict them.
type PostEvent struct {
	Type      string    `json:"type"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPostCreatedEvent builds a post.created event from a stored post.
func NewPostCreatedEvent(p *post.Post) *PostEvent {
	return &PostEvent{
		Type:      EventPostCreated,
		PostID:    p.ID,
		AuthorID:  p.AuthorID,
		Caption:   p.Caption,
		Timestamp: time.Now(),
	}
}

// NewPostRemovedEvent builds a post.removed event.
func NewPostRemovedEvent(postID string) *PostEvent {
	return &PostEvent{
		Type:      EventPostRemoved,
		PostID:    postID,
		Timestamp: time.Now(),
	}
}

// NewEngagementEvent builds a post.liked or post.saved event. The
// AuthorID field carries the user who performed the action.
func NewEngagementEvent(eventType, postID, userID string) *PostEvent {
	return &PostEvent{
		Type:      eventType,
		PostID:    postID,
		AuthorID:  userID,
		Timestamp: time.Now(),
	}
}
