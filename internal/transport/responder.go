// Package transport is the outbound half of the chat boundary: it pushes
// engine output to the chat platform's delivery endpoint. Message wording
// and rendering stay on the platform side.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/flow"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

// Options controls how the delivery client is configured.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Responder implements flow.Responder over the transport's delivery API.
type Responder struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewResponder(opts Options) (*Responder, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("transport base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Responder{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

type outboundMessage struct {
	UserID  string       `json:"user_id"`
	Type    string       `json:"type"`
	Text    string       `json:"text,omitempty"`
	URL     string       `json:"url,omitempty"`
	Caption string       `json:"caption,omitempty"`
	Buttons []buttonPart `json:"buttons,omitempty"`
}

type buttonPart struct {
	Label   string `json:"label"`
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

func (r *Responder) SendText(ctx context.Context, userID, text string) error {
	return r.deliver(ctx, outboundMessage{UserID: userID, Type: "text", Text: text})
}

func (r *Responder) SendPhoto(ctx context.Context, userID, url, caption string) error {
	return r.deliver(ctx, outboundMessage{UserID: userID, Type: "photo", URL: url, Caption: caption})
}

func (r *Responder) SendVideo(ctx context.Context, userID, url string) error {
	return r.deliver(ctx, outboundMessage{UserID: userID, Type: "video", URL: url})
}

func (r *Responder) SendMenu(ctx context.Context, userID, text string, buttons []flow.Button) error {
	parts := make([]buttonPart, len(buttons))
	for i, b := range buttons {
		parts[i] = buttonPart{Label: b.Label, Action: b.Action, Payload: b.Payload}
	}
	return r.deliver(ctx, outboundMessage{UserID: userID, Type: "menu", Text: text, Buttons: parts})
}

func (r *Responder) deliver(ctx context.Context, msg outboundMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver message: status %d", resp.StatusCode)
	}
	return nil
}

var _ flow.Responder = (*Responder)(nil)
