package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQualityChecker_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewQualityChecker(server.URL)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
}

func TestQualityChecker_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	checker := NewQualityChecker(server.URL)
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestQualityChecker_Unreachable(t *testing.T) {
	checker := NewQualityChecker("http://127.0.0.1:1")
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for unreachable service")
	}
}

func TestQualityChecker_MissingURL(t *testing.T) {
	checker := NewQualityChecker("")
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestQualityChecker_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	checker := NewQualityChecker(server.URL)
	if err := checker.HealthCheck(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
