// Package backup moves wt.v1 snapshot files between a running server and
// local disk over the HTTP API.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a RepCal server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an HTTP client for the RepCal server. The API key is
// required for restore; export works without it.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// FetchSnapshot downloads the server's current export file.
func (c *Client) FetchSnapshot() ([]byte, error) {
	resp, err := c.httpClient.Get(c.serverURL + "/api/v1/export")
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("export request failed (status %d): %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

// Restore POSTs a snapshot file to the server's import endpoint.
// Retries up to 3 times with exponential backoff on failure. A schema
// mismatch is reported without retrying; pass force to override it.
func (c *Client) Restore(snapshot []byte, force bool) error {
	url := c.serverURL + "/api/v1/import/"
	if force {
		url += "?force=1"
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(snapshot))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return nil
		case http.StatusConflict:
			var mismatch struct {
				Schema string `json:"schema"`
			}
			json.Unmarshal(body, &mismatch)
			return fmt.Errorf("schema mismatch (file schema %q): re-run with -force to import anyway", mismatch.Schema)
		}
		lastErr = fmt.Errorf("import failed (status %d): %s", resp.StatusCode, body)
	}

	return fmt.Errorf("after 3 attempts: %w", lastErr)
}
