package user

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultDirectoryTimeout bounds a single profile lookup. Callers
// degrade on error, so a slow directory must not stall the request.
const DefaultDirectoryTimeout = 2 * time.Second

// HTTPDirectory resolves profiles from the user directory service.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates an HTTPDirectory for the given directory
// base URL. A timeout of 0 uses DefaultDirectoryTimeout.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = DefaultDirectoryTimeout
	}
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetProfile fetches the profile for a user ID. A 404 from the
// directory maps to ErrProfileNotFound; any other failure is returned
// as-is for the caller's degradation policy to handle.
func (d *HTTPDirectory) GetProfile(ctx context.Context, id string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v1/profiles/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrProfileNotFound
	default:
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}
