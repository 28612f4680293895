package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// QualityChecker checks reachability of the quality scoring service.
// The analyzer exposes no dedicated health endpoint, so any 2xx from
// its base URL counts as healthy.
type QualityChecker struct {
	url    string
	client *http.Client
}

// NewQualityChecker creates a checker for the analyzer at the given
// base URL.
func NewQualityChecker(url string) *QualityChecker {
	return &QualityChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck issues a GET against the analyzer base URL.
func (q *QualityChecker) HealthCheck(ctx context.Context) error {
	if q.url == "" {
		return fmt.Errorf("quality service url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach quality service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("quality service unhealthy: unexpected status code %d", resp.StatusCode)
	}
	return nil
}
