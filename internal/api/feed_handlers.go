package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lumen-social/lumen/internal/feed"
	"github.com/lumen-social/lumen/internal/middleware"
)

// MaxFeedPageSize caps the limit query parameter.
const MaxFeedPageSize = 100

// FeedHandlers holds dependencies for the feed endpoint.
type FeedHandlers struct {
	service *feed.Service
}

// NewFeedHandlers creates a FeedHandlers instance.
func NewFeedHandlers(service *feed.Service) *FeedHandlers {
	return &FeedHandlers{service: service}
}

// GetFeed handles GET /feed.
//
// Query parameters: authorId, q (caption filter), page, limit,
// includeArchived, feedContext, viewerId. Malformed page and limit
// values are corrected rather than rejected. An authenticated viewer
// identity always wins over the viewerId parameter, which exists for
// anonymous preview tooling.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()

	viewerID := middleware.GetViewerID(r.Context())
	if viewerID == "" {
		viewerID = query.Get("viewerId")
	}

	q := feed.FeedQuery{
		AuthorID:        query.Get("authorId"),
		Text:            query.Get("q"),
		IncludeArchived: query.Get("includeArchived") == "true",
		Page:            parseIntParam(query.Get("page"), 1),
		Limit:           parseIntParam(query.Get("limit"), feed.DefaultPageSize),
		Context:         query.Get("feedContext"),
	}
	if q.Limit > MaxFeedPageSize {
		q.Limit = MaxFeedPageSize
	}

	page, err := h.service.GetFeed(r.Context(), viewerID, q)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build feed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve feed")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, page)
}

// parseIntParam parses a positive integer query parameter, returning
// the fallback for anything unusable. The ranking layer re-clamps, so
// this only needs to be permissive.
func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
