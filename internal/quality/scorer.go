// Package quality provides the client for the content intelligence
// service, which scores post media/captions for aesthetic quality.
// The feed must never block or fail because this service is down, so
// callers substitute DefaultScore whenever Score returns an error.
package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumen-social/lumen/internal/post"
)

// DefaultScore is the neutral quality score substituted when the
// analyzer is unavailable or returns an out-of-range value.
const DefaultScore = 0.5

// DefaultTimeout bounds a single analyzer call. The feed read path
// waits at most this long before falling back to DefaultScore.
const DefaultTimeout = 2 * time.Second

// ErrOutOfRange is returned when the analyzer reports a score outside [0, 1].
var ErrOutOfRange = errors.New("quality score out of range")

// Scorer scores a post's content quality in [0, 1].
type Scorer interface {
	// Score returns the quality score for a post. Implementations must
	// honor ctx cancellation. Callers treat any error as "use DefaultScore".
	Score(ctx context.Context, p *post.Post) (float64, error)
}

// scoreRequest is the analyzer request body.
type scoreRequest struct {
	PostID  string `json:"post_id"`
	Caption string `json:"caption"`
}

// scoreResponse is the analyzer response body. The analyzer returns a
// richer structure; only quality_score is consumed here.
type scoreResponse struct {
	QualityScore float64 `json:"quality_score"`
}

// HTTPScorer calls the content intelligence service over HTTP.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPScorer creates an HTTPScorer for the given analyzer base URL.
// A timeout of 0 uses DefaultTimeout.
func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Score posts the caption to the analyzer and returns its quality score.
func (s *HTTPScorer) Score(ctx context.Context, p *post.Post) (float64, error) {
	body, err := json.Marshal(scoreRequest{PostID: p.ID, Caption: p.Caption})
	if err != nil {
		return 0, fmt.Errorf("failed to encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quality service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quality service returned status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode score response: %w", err)
	}
	if out.QualityScore < 0 || out.QualityScore > 1 {
		return 0, ErrOutOfRange
	}
	return out.QualityScore, nil
}

// StaticScorer returns a fixed score for every post. Used in tests and
// as a stand-in when no analyzer is configured.
type StaticScorer struct {
	Value float64
	Err   error
}

// Score returns the configured value or error.
func (s *StaticScorer) Score(ctx context.Context, p *post.Post) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Value, nil
}
