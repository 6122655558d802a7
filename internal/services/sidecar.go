package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SidecarClient talks to the ML sidecar over HTTP. The sidecar hosts the
// deployed models; each predictor posts JSON to its own endpoint.
type SidecarClient struct {
	url    string
	client *http.Client
}

// NewSidecarClient creates a new SidecarClient.
func NewSidecarClient(url string) *SidecarClient {
	return &SidecarClient{
		url: url,
		client: &http.Client{
			// hung model calls are bounded here and treated as step failures
			Timeout: 60 * time.Second,
		},
	}
}

// postJSON marshals the request payload, posts it to the given endpoint, and
// decodes the JSON response into out.
func (c *SidecarClient) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call sidecar %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar %s returned status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sidecar response: %w", err)
	}
	return nil
}
