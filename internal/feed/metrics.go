package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedRequests         = "feed_requests_total"
	MetricFeedCandidates       = "feed_candidates"
	MetricFeedDuration         = "feed_pipeline_duration_seconds"
	MetricFeedQualityFallbacks = "feed_quality_fallbacks_total"
	MetricFeedStoreErrors      = "feed_store_errors_total"
)

// Metrics contains Prometheus metrics for the feed pipeline. It is an
// explicitly-owned, injected object rather than module-level mutable
// state; all operations are thread-safe.
type Metrics struct {
	requests         *prometheus.CounterVec
	candidates       prometheus.Histogram
	duration         prometheus.Histogram
	qualityFallbacks prometheus.Counter
	storeErrors      prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to attach
// them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedRequests,
				Help: "Total number of feed requests by context and viewer kind",
			},
			[]string{"context", "viewer"},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricFeedCandidates,
				Help:    "Number of candidates fetched per feed request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricFeedDuration,
				Help:    "Feed pipeline duration in seconds (fetch through rank)",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
		),
		qualityFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFeedQualityFallbacks,
				Help: "Total number of quality-scorer failures substituted with the neutral default",
			},
		),
		storeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFeedStoreErrors,
				Help: "Total number of candidate fetch failures",
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requests,
		m.candidates,
		m.duration,
		m.qualityFallbacks,
		m.storeErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observeRequest records one feed request. Safe on a nil receiver so
// the service can run without metrics in tests.
func (m *Metrics) observeRequest(feedContext string, anonymous bool) {
	if m == nil {
		return
	}
	viewer := "authenticated"
	if anonymous {
		viewer = "anonymous"
	}
	if feedContext == "" {
		feedContext = "home"
	}
	m.requests.WithLabelValues(feedContext, viewer).Inc()
}

func (m *Metrics) observeCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
}

func (m *Metrics) observeQualityFallback() {
	if m == nil {
		return
	}
	m.qualityFallbacks.Inc()
}

func (m *Metrics) observeStoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}
