// Package catalog reads the externally curated model and background lists.
// The catalog service owns the content; this client only caches it briefly
// so carousel taps do not hammer the remote on every navigation.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

// Options controls how the catalog client is configured.
type Options struct {
	BaseURL    string
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *infra.Logger
}

// Client implements domain.Catalog against the catalog HTTP API with a
// short-lived cache. On a fetch error it serves the stale list: an outdated
// carousel beats a dead one.
type Client struct {
	baseURL    string
	cacheTTL   time.Duration
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *infra.Logger

	mu          sync.Mutex
	models      []domain.CatalogItem
	backgrounds []domain.CatalogItem
	fetchedAt   time.Time
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		cacheTTL:   ttl,
		httpClient: httpClient,
		clock:      clock,
		logger:     opts.Logger,
	}, nil
}

type catalogItem struct {
	ID     string `json:"id"`
	Ref    string `json:"ref"`
	Gender string `json:"gender,omitempty"`
}

type catalogResponse struct {
	Models      []catalogItem `json:"models"`
	Backgrounds []catalogItem `json:"backgrounds"`
}

func (c *Client) Models(gender string) []domain.CatalogItem {
	c.refresh()
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.FilterByGender(c.models, gender)
}

func (c *Client) Backgrounds(gender string) []domain.CatalogItem {
	c.refresh()
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.FilterByGender(c.backgrounds, gender)
}

func (c *Client) refresh() {
	c.mu.Lock()
	fresh := !c.fetchedAt.IsZero() && c.clock.Now().Sub(c.fetchedAt) < c.cacheTTL
	c.mu.Unlock()
	if fresh {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/catalog", nil)
	if err != nil {
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("catalog: fetch failed, serving cached list")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logger != nil {
			c.logger.Warn().Int("status", resp.StatusCode).Msg("catalog: fetch failed, serving cached list")
		}
		return
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("catalog: undecodable payload, serving cached list")
		}
		return
	}

	c.mu.Lock()
	c.models = convert(payload.Models)
	c.backgrounds = convert(payload.Backgrounds)
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()
}

func convert(items []catalogItem) []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(items))
	for i, it := range items {
		out[i] = domain.CatalogItem{ID: it.ID, Ref: it.Ref, Gender: it.Gender}
	}
	return out
}

var _ domain.Catalog = (*Client)(nil)
