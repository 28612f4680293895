// Package post provides the post model and repositories backing the
// ranked feed. Posts are the candidate unit of ranking: the repository
// applies only cheap equality filters, everything viewer-dependent
// (eligibility, scoring) happens downstream in the feed pipeline.
package post

import (
	"errors"
	"slices"
	"time"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostRemoved  = errors.New("post has been removed")
)

// Visibility controls who may see a post.
type Visibility string

// Visibility values.
const (
	// VisibilityPublic posts are visible to everyone, including
	// anonymous viewers.
	VisibilityPublic Visibility = "public"

	// VisibilityFollowers posts are visible to the author and the
	// author's followers only.
	VisibilityFollowers Visibility = "followers"

	// VisibilityPrivate posts are visible to the author only.
	VisibilityPrivate Visibility = "private"
)

// ValidVisibility reports whether v is a recognized visibility value.
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

// ModerationState tracks the moderation lifecycle of a post.
type ModerationState string

// Moderation states.
const (
	// ModerationNone is the default state for unreviewed content.
	ModerationNone ModerationState = "none"

	// ModerationFlagged marks content flagged for review. Flagged posts
	// still rank; the state exists so clients can badge them.
	ModerationFlagged ModerationState = "flagged"

	// ModerationRemoved marks content taken down by moderation.
	// Removed posts never appear in any feed, for any viewer.
	ModerationRemoved ModerationState = "removed"
)

// ValidModerationState reports whether s is a recognized moderation state.
func ValidModerationState(s ModerationState) bool {
	switch s {
	case ModerationNone, ModerationFlagged, ModerationRemoved:
		return true
	}
	return false
}

// Post represents a piece of content eligible for feed ranking.
//
// Likes and Saves hold user IDs; their sizes feed the engagement
// signals. QualityScore is produced out-of-band by the content
// intelligence service and is nil until the first analysis completes.
type Post struct {
	ID         string          `json:"id"`
	AuthorID   string          `json:"author_id"`
	Caption    string          `json:"caption"`
	Visibility Visibility      `json:"visibility"`
	Likes      []string        `json:"likes,omitempty"`
	Saves      []string        `json:"saves,omitempty"`
	Quality    *float64        `json:"quality_score,omitempty"`
	Moderation ModerationState `json:"moderation_state"`
	Archived   bool            `json:"archived"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IsRemoved returns true if the post has been removed by moderation.
func (p *Post) IsRemoved() bool {
	return p.Moderation == ModerationRemoved
}

// LikedBy reports whether the given user has liked the post.
func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// SavedBy reports whether the given user has saved the post.
func (p *Post) SavedBy(userID string) bool {
	return slices.Contains(p.Saves, userID)
}

// Query describes the cheap equality filters a repository applies before
// the feed pipeline runs. Everything here is viewer-independent; removed
// posts are always excluded regardless of the other fields.
type Query struct {
	// AuthorID restricts candidates to a single author when non-empty.
	AuthorID string

	// Text is a case-insensitive caption filter. Matching is delegated
	// to the repository (substring in memory, ILIKE in Postgres).
	Text string

	// IncludeArchived includes archived posts when true. The default
	// feed excludes them.
	IncludeArchived bool

	// FetchLimit caps the number of candidates returned, newest first.
	// Zero means no cap. CountCandidates ignores it.
	FetchLimit int
}
