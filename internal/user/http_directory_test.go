package user

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPDirectory_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profiles/alice" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":"alice","is_private":true,"followers":["bob"]}`)); err != nil {
			t.Errorf("write failed: %v", err)
		}
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, 0)
	p, err := dir.GetProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.ID != "alice" || !p.IsPrivate {
		t.Errorf("unexpected profile %+v", p)
	}
	if !p.FollowedBy("bob") {
		t.Error("follower set not decoded")
	}
}

func TestHTTPDirectory_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, 0)
	if _, err := dir.GetProfile(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestHTTPDirectory_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, 0)
	if _, err := dir.GetProfile(context.Background(), "alice"); err == nil {
		t.Error("expected error for 502 response")
	}
}
