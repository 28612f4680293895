package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/quality"
	"github.com/lumen-social/lumen/internal/user"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	return nil
}

func counterValue(fam *dto.MetricFamily) float64 {
	if fam == nil || len(fam.Metric) == 0 {
		return 0
	}
	var total float64
	for _, m := range fam.Metric {
		total += m.GetCounter().GetValue()
	}
	return total
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	// Registering the same collectors twice must fail.
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_NilReceiverSafe(t *testing.T) {
	var m *Metrics
	m.observeRequest("home", false)
	m.observeCandidates(3)
	m.observeDuration(0.01)
	m.observeQualityFallback()
	m.observeStoreError()
}

func TestMetrics_FeedPipelineCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	repo := post.NewInMemoryRepository()
	dir := user.NewInMemoryDirectory()
	dir.PutProfile(&user.Profile{ID: "alice"})

	ctx := context.Background()
	if err := repo.Create(ctx, &post.Post{AuthorID: "alice", Caption: "unrated"}); err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}

	svc := NewService(repo, dir, &quality.StaticScorer{Err: errors.New("analyzer down")}, nil, m)
	if _, err := svc.GetFeed(ctx, "bob", FeedQuery{}); err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if _, err := svc.GetFeed(ctx, "", FeedQuery{Context: ContextExplore}); err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}

	requests := gatherMetric(t, reg, MetricFeedRequests)
	if got := counterValue(requests); got != 2 {
		t.Errorf("%s = %v, want 2", MetricFeedRequests, got)
	}
	// The request counter is labelled by context and viewer kind.
	labels := map[string]bool{}
	for _, metric := range requests.Metric {
		key := ""
		for _, l := range metric.Label {
			key += l.GetName() + "=" + l.GetValue() + ";"
		}
		labels[key] = true
	}
	if !labels["context=home;viewer=authenticated;"] {
		t.Errorf("missing home/authenticated series, have %v", labels)
	}
	if !labels["context=explore;viewer=anonymous;"] {
		t.Errorf("missing explore/anonymous series, have %v", labels)
	}

	// Both requests hit the broken analyzer once for the unrated post.
	if got := counterValue(gatherMetric(t, reg, MetricFeedQualityFallbacks)); got != 2 {
		t.Errorf("%s = %v, want 2", MetricFeedQualityFallbacks, got)
	}
	if got := counterValue(gatherMetric(t, reg, MetricFeedStoreErrors)); got != 0 {
		t.Errorf("%s = %v, want 0", MetricFeedStoreErrors, got)
	}

	duration := gatherMetric(t, reg, MetricFeedDuration)
	if duration == nil || duration.Metric[0].GetHistogram().GetSampleCount() != 2 {
		t.Error("expected 2 pipeline duration samples")
	}
}

func TestMetrics_StoreErrorCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	svc := NewService(&failingRepository{}, user.NewInMemoryDirectory(), nil, nil, m)
	if _, err := svc.GetFeed(context.Background(), "bob", FeedQuery{}); err == nil {
		t.Fatal("expected store failure")
	}
	if got := counterValue(gatherMetric(t, reg, MetricFeedStoreErrors)); got != 1 {
		t.Errorf("%s = %v, want 1", MetricFeedStoreErrors, got)
	}
}
