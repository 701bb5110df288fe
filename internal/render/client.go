// Package render integrates with the external asynchronous render provider:
// job submission, status fetching, and the bounded polling loop that turns
// the provider's status codes into one terminal outcome per job.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

// SubmitRequest carries everything the provider needs to start a render.
// Prompt and palette are assembled by collaborators and passed through.
type SubmitRequest struct {
	Kind           domain.JobKind
	SourceImageRef string
	ResultImageURL string
	Prompt         string
	ModelRef       string
	BackgroundRef  string
	ColorPalette   []string
}

// StatusResponse mirrors the provider's status payload. The result URL can
// appear under several field names depending on job type and completion
// path, so all of them are mapped.
type StatusResponse struct {
	Code            int    `json:"status_code"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	ResultURL       string `json:"result_url,omitempty"`
	FileDownloadURL string `json:"file_download_url,omitempty"`
	GenerateResult  string `json:"generate_result,omitempty"`
	Works           []Work `json:"works,omitempty"`
}

// Work is one result item inside a status payload.
type Work struct {
	URL      string `json:"url,omitempty"`
	Cover    *Cover `json:"cover,omitempty"`
	Resource string `json:"resource,omitempty"`
}

type Cover struct {
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// hasPayload reports whether the response carries any result material at
// all. A success code without payload is not yet a success.
func (r StatusResponse) hasPayload() bool {
	return len(r.Works) > 0 ||
		r.ImageURL != "" || r.VideoURL != "" || r.ResultURL != "" ||
		r.FileDownloadURL != "" || r.GenerateResult != ""
}

// resolveURL walks the ordered fallback chain for the primary asset URL.
// Returns "" when nothing resolves.
func (r StatusResponse) resolveURL(kind domain.JobKind) string {
	primary := r.ImageURL
	if kind == domain.JobKindVideo {
		primary = r.VideoURL
	}
	if primary != "" {
		return primary
	}
	if r.ResultURL != "" {
		return r.ResultURL
	}
	for _, w := range r.Works {
		if w.URL != "" {
			return w.URL
		}
		if w.Resource != "" {
			return w.Resource
		}
	}
	for _, w := range r.Works {
		if w.Cover != nil && w.Cover.ThumbnailURL != "" {
			return w.Cover.ThumbnailURL
		}
	}
	if r.GenerateResult != "" {
		return r.GenerateResult
	}
	// Some completions report only the download link.
	return r.FileDownloadURL
}

// Options controls how the provider client is configured.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is the HTTP client for the render provider API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("provider base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The per-call timeout keeps the poller's own deadline reachable
		// even when the provider hangs.
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

type submitPayload struct {
	Kind          string   `json:"kind"`
	SourceImage   string   `json:"source_image,omitempty"`
	ResultImage   string   `json:"result_image,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	ModelRef      string   `json:"model_ref,omitempty"`
	BackgroundRef string   `json:"background_ref,omitempty"`
	ColorPalette  []string `json:"color_palette,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// Submit starts a render job and returns the provider-issued job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload := submitPayload{
		Kind:          string(req.Kind),
		SourceImage:   req.SourceImageRef,
		ResultImage:   req.ResultImageURL,
		Prompt:        req.Prompt,
		ModelRef:      req.ModelRef,
		BackgroundRef: req.BackgroundRef,
		ColorPalette:  req.ColorPalette,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/jobs", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("submit job: status %d", resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}
	return out.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("fetch job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusResponse{}, fmt.Errorf("fetch job status: status %d", resp.StatusCode)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}
