package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumen-social/lumen/internal/feed"
	"github.com/lumen-social/lumen/internal/middleware"
	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/quality"
	"github.com/lumen-social/lumen/internal/user"
)

type apiFixture struct {
	repo *post.InMemoryRepository
	dir  *user.InMemoryDirectory
	feed *FeedHandlers
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := post.NewInMemoryRepository()
	dir := user.NewInMemoryDirectory()
	svc := feed.NewService(repo, dir, &quality.StaticScorer{Value: 0.5}, feed.NewWeightedScorer(nil), nil)
	return &apiFixture{
		repo: repo,
		dir:  dir,
		feed: NewFeedHandlers(svc),
	}
}

func (f *apiFixture) addPost(t *testing.T, p *post.Post) *post.Post {
	t.Helper()
	f.dir.PutProfile(&user.Profile{ID: p.AuthorID})
	if err := f.repo.Create(t.Context(), p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func decodeFeedPage(t *testing.T, rec *httptest.ResponseRecorder) *feed.FeedPage {
	t.Helper()
	var page feed.FeedPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode feed page: %v", err)
	}
	return &page
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return &resp
}

func TestGetFeed_ReturnsRankedPosts(t *testing.T) {
	f := newAPIFixture(t)
	f.addPost(t, &post.Post{AuthorID: "alice", Caption: "first light"})
	f.addPost(t, &post.Post{AuthorID: "alice", Caption: "golden hour"})

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(page.Posts))
	}
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}
	if page.HasMore {
		t.Error("has_more = true for a partial page")
	}
	for _, item := range page.Posts {
		if item.RankScore <= 0 {
			t.Errorf("post %s has non-positive rank score %f", item.ID, item.RankScore)
		}
	}
}

func TestGetFeed_MethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/feed", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestGetFeed_MalformedPaginationCorrected(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		f.addPost(t, &post.Post{AuthorID: "alice", Caption: fmt.Sprintf("shot %d", i)})
	}

	// Garbage page and limit values fall back to defaults instead of
	// erroring.
	req := httptest.NewRequest(http.MethodGet, "/feed?page=banana&limit=-5", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 3 {
		t.Errorf("got %d posts, want 3", len(page.Posts))
	}
}

func TestGetFeed_PaginationWindow(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 5; i++ {
		f.addPost(t, &post.Post{AuthorID: "alice", Caption: fmt.Sprintf("shot %d", i)})
	}

	req := httptest.NewRequest(http.MethodGet, "/feed?page=2&limit=3", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 2 {
		t.Fatalf("page 2 returned %d posts, want 2", len(page.Posts))
	}
	if page.HasMore {
		t.Error("has_more = true on a short final page")
	}
	if page.Total != 5 {
		t.Errorf("total = %d, want 5", page.Total)
	}
}

func TestGetFeed_AuthenticatedViewerWinsOverParam(t *testing.T) {
	f := newAPIFixture(t)
	f.addPost(t, &post.Post{
		AuthorID:   "alice",
		Caption:    "followers only",
		Visibility: post.VisibilityFollowers,
	})
	f.dir.AddFollower("alice", "bob")

	// Authenticated as carol while the query parameter claims bob. The
	// token identity wins, so the followers-only post stays hidden.
	req := httptest.NewRequest(http.MethodGet, "/feed?viewerId=bob", nil)
	req = req.WithContext(middleware.SetViewerID(req.Context(), "carol"))
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 0 {
		t.Fatalf("carol sees %d posts, want 0", len(page.Posts))
	}
}

func TestGetFeed_ViewerParamUsedWhenAnonymous(t *testing.T) {
	f := newAPIFixture(t)
	f.addPost(t, &post.Post{
		AuthorID:   "alice",
		Caption:    "followers only",
		Visibility: post.VisibilityFollowers,
	})
	f.dir.AddFollower("alice", "bob")

	req := httptest.NewRequest(http.MethodGet, "/feed?viewerId=bob", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 1 {
		t.Fatalf("bob sees %d posts, want 1", len(page.Posts))
	}
}

func TestGetFeed_AuthorFilter(t *testing.T) {
	f := newAPIFixture(t)
	f.addPost(t, &post.Post{AuthorID: "alice", Caption: "from alice"})
	f.addPost(t, &post.Post{AuthorID: "bob", Caption: "from bob"})

	req := httptest.NewRequest(http.MethodGet, "/feed?authorId=bob", nil)
	rec := httptest.NewRecorder()
	f.feed.GetFeed(rec, req)

	page := decodeFeedPage(t, rec)
	if len(page.Posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(page.Posts))
	}
	if page.Posts[0].AuthorID != "bob" {
		t.Errorf("author = %q, want bob", page.Posts[0].AuthorID)
	}
}

type erroringRepository struct {
	post.Repository
}

func (erroringRepository) FindCandidates(ctx context.Context, q post.Query) ([]*post.Post, error) {
	return nil, errors.New("connection refused")
}

func TestGetFeed_StoreFailureReturns500(t *testing.T) {
	svc := feed.NewService(erroringRepository{}, user.NewInMemoryDirectory(), nil, feed.NewWeightedScorer(nil), nil)
	h := NewFeedHandlers(svc)

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	h.GetFeed(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeInternal)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		raw      string
		fallback int
		want     int
	}{
		{"", 10, 10},
		{"3", 10, 3},
		{"0", 10, 10},
		{"-7", 1, 1},
		{"abc", 1, 1},
		{"2.5", 1, 1},
	}
	for _, tt := range tests {
		if got := parseIntParam(tt.raw, tt.fallback); got != tt.want {
			t.Errorf("parseIntParam(%q, %d) = %d, want %d", tt.raw, tt.fallback, got, tt.want)
		}
	}
}
