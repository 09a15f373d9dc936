package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Request constants.
const (
	// defaultTimeout bounds one command-channel round trip.
	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds the response body.
	maxResponseBytes = 1 << 20
)

// Methods exposed by the device-command service.
const (
	MethodSendText           = "send-text"
	MethodSendPixelArt       = "send-pixel-art"
	MethodSendPixelAnimation = "send-pixel-animation"
	MethodSendGIF            = "send-gif"
	MethodGetDeviceStatus    = "get-device-status"
)

// Client is the primary command channel: a request/response path to the
// device-command service, preferred over the broker for direct commands.
//
// All calls carry the product ID and target device name in params and are
// bounded by the configured timeout.
type Client struct {
	endpoint   string
	productID  string
	httpClient *http.Client
}

// NewClient creates a command channel client.
//
// Parameters:
//   - endpoint: JSON-RPC URL of the device-command service
//   - productID: Product scope for all calls
//   - timeout: Per-call bound; zero means the 10s default
func NewClient(endpoint, productID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:  endpoint,
		productID: productID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is the JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      string                 `json:"id"`
}

// response is the command service response envelope.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Call invokes a method against the command service for one device.
//
// The productId and deviceName params are filled in automatically; extra
// carries the method-specific fields (content, metadata and so on).
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - method: One of the Method* constants
//   - deviceName: Target device
//   - extra: Method-specific params (may be nil)
//
// Returns:
//   - json.RawMessage: The data field of a successful response (may be nil)
//   - error: ErrCallFailed on transport problems, ErrRejected when the
//     service answered success=false
func (c *Client) Call(ctx context.Context, method, deviceName string, extra map[string]interface{}) (json.RawMessage, error) {
	params := map[string]interface{}{
		"productId":  c.productID,
		"deviceName": deviceName,
	}
	for k, v := range extra {
		params[k] = v
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %w", ErrCallFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service returned status %d", ErrCallFailed, resp.StatusCode)
	}

	var wire response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrCallFailed, err)
	}

	if !wire.Success {
		if wire.Error == "" {
			wire.Error = "unspecified error"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, wire.Error)
	}

	return wire.Data, nil
}

// deviceStatus is the data payload of a get-device-status response.
type deviceStatus struct {
	Online bool `json:"online"`
}

// GetDeviceStatus queries the live connection state of one device.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceName: Target device
//
// Returns:
//   - bool: Whether the device is currently online
//   - error: As for Call; on error the caller must not change cached state
func (c *Client) GetDeviceStatus(ctx context.Context, deviceName string) (bool, error) {
	data, err := c.Call(ctx, MethodGetDeviceStatus, deviceName, nil)
	if err != nil {
		return false, err
	}

	var status deviceStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return false, fmt.Errorf("%w: decoding status: %w", ErrCallFailed, err)
	}

	return status.Online, nil
}
