// Package ledger talks to the remote credit service of record. It holds no
// local state: every balance, debit, and compensating credit is a remote
// call, and transport failures are surfaced as ErrLedgerUnavailable rather
// than guessed at.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

// CostTable maps a job kind to its credit cost. Defaults follow the current
// pricing: one credit per image, three per video.
type CostTable map[domain.JobKind]int

func DefaultCosts() CostTable {
	return CostTable{
		domain.JobKindImage: 1,
		domain.JobKindVideo: 3,
	}
}

// Cost returns the price for a kind. Unknown kinds price at the image rate
// so a misconfigured table can never hand out free work.
func (t CostTable) Cost(kind domain.JobKind) int {
	if c, ok := t[kind]; ok && c > 0 {
		return c
	}
	return 1
}

// Options controls how the ledger client is configured.
type Options struct {
	BaseURL    string
	Token      string
	Costs      CostTable
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is the HTTP credit-ledger client.
type Client struct {
	baseURL    string
	token      string
	costs      CostTable
	httpClient *http.Client
	logger     *infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("ledger base url is required")
	}
	costs := opts.Costs
	if costs == nil {
		costs = DefaultCosts()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		costs:      costs,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Cost exposes the configured price for a job kind.
func (c *Client) Cost(kind domain.JobKind) int { return c.costs.Cost(kind) }

type balanceResponse struct {
	Balance int `json:"balance"`
}

type insufficientResponse struct {
	Required  int `json:"required"`
	Available int `json:"available"`
}

// Balance fetches the user's spendable credit balance. A transport or
// server error is ErrLedgerUnavailable, never a zero balance.
func (c *Client) Balance(ctx context.Context, userID string) (int, error) {
	var out balanceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+userID+"/balance", nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

type debitRequest struct {
	Amount   int               `json:"amount"`
	Kind     string            `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Debit charges the user for one job of the given kind and returns the new
// balance. Insufficient funds come back as InsufficientCreditsError with no
// charge applied.
func (c *Client) Debit(ctx context.Context, userID string, kind domain.JobKind) (int, error) {
	body := debitRequest{
		Amount: c.costs.Cost(kind),
		Kind:   string(kind),
	}
	var out balanceResponse
	if err := c.do(ctx, http.MethodPost, "/v1/users/"+userID+"/debit", body, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

type creditRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
	OpRef  string `json:"op_ref"`
}

// Credit issues a compensating credit. The opRef makes the call idempotent
// on the ledger side: replaying the same opRef must not double-credit.
func (c *Client) Credit(ctx context.Context, userID string, amount int, reason, opRef string) error {
	body := creditRequest{Amount: amount, Reason: reason, OpRef: opRef}
	return c.do(ctx, http.MethodPost, "/v1/users/"+userID+"/credit", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode ledger request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		var ins insufficientResponse
		if err := json.NewDecoder(resp.Body).Decode(&ins); err != nil {
			return fmt.Errorf("%w: undecodable 402 body", domain.ErrLedgerUnavailable)
		}
		return &domain.InsufficientCreditsError{Required: ins.Required, Available: ins.Available}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		if c.logger != nil {
			c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("ledger: unexpected status")
		}
		return fmt.Errorf("%w: status %d", domain.ErrLedgerUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrLedgerUnavailable, err)
	}
	return nil
}
