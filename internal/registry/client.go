package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request constants.
const (
	// defaultTimeout bounds one registry round trip.
	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds the registry response body.
	maxResponseBytes = 4 * 1024 * 1024
)

// Record is one device as known to the authoritative registry.
// The registry owns device identity and ownership; it says nothing
// reliable about live connectivity (its status field lags reality).
type Record struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client fetches the device list from the backend registry.
//
// The registry is polled, not pushed: callers decide when to refresh.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a registry client.
//
// Parameters:
//   - endpoint: Base URL of the registry service
//   - apiKey: Bearer token for registry access (may be empty for local dev)
//   - timeout: Per-request bound; zero means the 10s default
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DeviceList fetches the authoritative device list.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - []Record: Devices owned by the current user (may be empty)
//   - error: ErrUnavailable-wrapped on transport failure, ErrBadResponse
//     on a malformed body
func (c *Client) DeviceList(ctx context.Context) ([]Record, error) {
	url := c.endpoint + "/devices"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: registry returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	return records, nil
}
