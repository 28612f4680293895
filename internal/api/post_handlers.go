package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumen-social/lumen/internal/feed"
	"github.com/lumen-social/lumen/internal/middleware"
	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/stream"
	"github.com/lumen-social/lumen/internal/user"
	"github.com/lumen-social/lumen/internal/validate"
)

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Caption    string `json:"caption"`
	Visibility string `json:"visibility,omitempty"`
}

// ModerationRequest is the request body for setting moderation state.
type ModerationRequest struct {
	State string `json:"state"`
}

// PostResponse is the sanitized single-post view. Liker and saver
// identity sets never appear here, only their counts, matching the
// fields feed items expose.
type PostResponse struct {
	ID         string          `json:"id"`
	AuthorID   string          `json:"author_id"`
	Caption    string          `json:"caption"`
	Visibility post.Visibility `json:"visibility"`
	LikeCount  int             `json:"like_count"`
	SaveCount  int             `json:"save_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newPostResponse(p *post.Post) PostResponse {
	return PostResponse{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		Caption:    p.Caption,
		Visibility: p.Visibility,
		LikeCount:  len(p.Likes),
		SaveCount:  len(p.Saves),
		CreatedAt:  p.CreatedAt,
	}
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	repo        post.Repository
	users       user.Directory
	broadcaster *stream.Broadcaster
}

// NewPostHandlers creates a PostHandlers instance. broadcaster may be
// nil when no event socket is wired.
func NewPostHandlers(repo post.Repository, users user.Directory, broadcaster *stream.Broadcaster) *PostHandlers {
	return &PostHandlers{
		repo:        repo,
		users:       users,
		broadcaster: broadcaster,
	}
}

// extractPostID pulls the post ID out of /posts/{id}[/action].
func extractPostID(r *http.Request) (string, error) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/posts/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("post ID is required")
	}
	return parts[0], nil
}

// CreatePost handles POST /posts. The author is the authenticated
// viewer; anonymous creation is rejected.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetViewerID(r.Context())
	if authorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required to create posts")
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	caption, err := validate.Caption(req.Caption)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	visibility := post.Visibility(req.Visibility)
	if req.Visibility == "" {
		visibility = post.VisibilityPublic
	}
	if !post.ValidVisibility(visibility) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidVisibility)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidVisibility, "Visibility must be public, followers, or private")
		return
	}

	newPost := &post.Post{
		AuthorID:   authorID,
		Caption:    caption,
		Visibility: visibility,
	}

	if err := h.repo.Create(r.Context(), newPost); err != nil {
		slog.ErrorContext(r.Context(), "failed to create post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(stream.NewPostCreatedEvent(newPost))
	}

	writeJSON(w, r.Context(), http.StatusCreated, newPostResponse(newPost))
}

// GetPost handles GET /posts/{id}. Removed posts and posts the viewer
// is not eligible to see both report not_found, so callers cannot
// distinguish hidden posts from nonexistent ones.
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Post ID is required")
		return
	}

	p, err := h.repo.GetByID(r.Context(), postID)
	if err != nil {
		h.writeRepoError(w, r, err, postID, "failed to retrieve post")
		return
	}

	if !feed.Visible(p, h.loadAuthor(r, p.AuthorID), h.loadViewer(r)) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, newPostResponse(p))
}

// loadViewer resolves the authenticated viewer's relationship
// profile. Anonymous viewers and lookup failures degrade to empty
// relation sets.
func (h *PostHandlers) loadViewer(r *http.Request) *user.Profile {
	viewerID := middleware.GetViewerID(r.Context())
	if viewerID == "" {
		return nil
	}
	profile, err := h.users.GetProfile(r.Context(), viewerID)
	if err != nil {
		if !errors.Is(err, user.ErrProfileNotFound) {
			slog.WarnContext(r.Context(), "viewer profile lookup failed, using empty relations",
				"viewer_id", viewerID,
				"error", err)
		}
		return &user.Profile{ID: viewerID}
	}
	return profile
}

// loadAuthor resolves the author's profile. Missing or failed lookups
// return nil, which the visibility check treats as a private author
// with no followers.
func (h *PostHandlers) loadAuthor(r *http.Request, authorID string) *user.Profile {
	profile, err := h.users.GetProfile(r.Context(), authorID)
	if err != nil {
		if !errors.Is(err, user.ErrProfileNotFound) {
			slog.WarnContext(r.Context(), "author profile lookup failed, failing closed",
				"author_id", authorID,
				"error", err)
		}
		return nil
	}
	return profile
}

// Engage handles POST /posts/{id}/{like|unlike|save|unsave}. All four
// operations are idempotent.
func (h *PostHandlers) Engage(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetViewerID(r.Context())
	if viewerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Post ID is required")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/posts/"), "/")
	if len(parts) != 2 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Unknown engagement action")
		return
	}

	var eventType string
	switch parts[1] {
	case "like":
		err = h.repo.Like(r.Context(), postID, viewerID)
		eventType = stream.EventPostLiked
	case "unlike":
		err = h.repo.Unlike(r.Context(), postID, viewerID)
	case "save":
		err = h.repo.Save(r.Context(), postID, viewerID)
		eventType = stream.EventPostSaved
	case "unsave":
		err = h.repo.Unsave(r.Context(), postID, viewerID)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Unknown engagement action")
		return
	}
	if err != nil {
		h.writeRepoError(w, r, err, postID, "failed to record engagement")
		return
	}

	if h.broadcaster != nil && eventType != "" {
		h.broadcaster.Broadcast(stream.NewEngagementEvent(eventType, postID, viewerID))
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetModeration handles POST /posts/{id}/moderation.
func (h *PostHandlers) SetModeration(w http.ResponseWriter, r *http.Request) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Post ID is required")
		return
	}

	var req ModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	state := post.ModerationState(req.State)
	if !post.ValidModerationState(state) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "State must be none, flagged, or removed")
		return
	}

	if err := h.repo.SetModerationState(r.Context(), postID, state); err != nil {
		h.writeRepoError(w, r, err, postID, "failed to set moderation state")
		return
	}

	if h.broadcaster != nil && state == post.ModerationRemoved {
		h.broadcaster.Broadcast(stream.NewPostRemovedEvent(postID))
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeRepoError maps repository errors to API responses.
func (h *PostHandlers) writeRepoError(w http.ResponseWriter, r *http.Request, err error, postID, logMsg string) {
	switch {
	case errors.Is(err, post.ErrPostNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
	case errors.Is(err, post.ErrPostRemoved):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodePostRemoved)
		WriteError(w, ctx, http.StatusNotFound, ErrCodePostRemoved, "Post not found")
	default:
		slog.ErrorContext(r.Context(), logMsg, "error", err, "post_id", postID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}
