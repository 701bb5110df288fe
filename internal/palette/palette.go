// Package palette wraps the color-extraction collaborator. The pixels and
// the extraction itself live elsewhere; the engine only carries the result
// through to the render prompt.
package palette

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the palette service for an uploaded image reference.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("palette base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}, nil
}

type extractResponse struct {
	Palette    []string `json:"palette"`
	Confidence float64  `json:"confidence"`
}

func (c *Client) Extract(ctx context.Context, imageRef string) ([]string, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/palette?image="+url.QueryEscape(imageRef), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build palette request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("extract palette: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("extract palette: status %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("decode palette response: %w", err)
	}
	return out.Palette, out.Confidence, nil
}
