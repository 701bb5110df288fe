package render

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

const (
	DefaultMaxAttempts  = 60
	DefaultPollInterval = 5 * time.Second
	DefaultVideoLimit   = 5 * time.Minute
)

// StatusFetcher is the slice of the provider client the poller needs.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (StatusResponse, error)
}

// PollerConfig bounds the polling loop. Zero values fall back to defaults.
type PollerConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
	// VideoDeadline is a wall-clock cap applied to video jobs on top of the
	// attempt budget. Whichever bound is hit first wins.
	VideoDeadline time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.VideoDeadline <= 0 {
		c.VideoDeadline = DefaultVideoLimit
	}
	return c
}

// Poller drives a job to a terminal outcome by repeatedly fetching its
// status. One Poll call covers one job identity; a job that fails or times
// out is never polled again.
type Poller struct {
	fetcher StatusFetcher
	cfg     PollerConfig
	clock   clockwork.Clock
	logger  infra.Logger
}

func NewPoller(fetcher StatusFetcher, cfg PollerConfig, clock clockwork.Clock, logger infra.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		clock:   clock,
		logger:  logger,
	}
}

// Poll loops until the job succeeds, fails, or the bounds run out.
//
// Provider status semantics: an explicit error message, code 3, or any
// negative code is a hard failure and aborts immediately. A code of 2 or
// higher with result material is a success, but only if a URL actually
// resolves through the fallback chain; otherwise the payload is malformed
// and the job counts as failed. Anything else is still pending.
func (p *Poller) Poll(ctx context.Context, jobID string, kind domain.JobKind) (domain.RenderResult, error) {
	var deadline time.Time
	if kind == domain.JobKindVideo {
		deadline = p.clock.Now().Add(p.cfg.VideoDeadline)
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		// The deadline gates the fetch so an expiry during the wait never
		// buys the job one more provider call.
		if !deadline.IsZero() && !p.clock.Now().Before(deadline) {
			p.logger.Warn().Str("job_id", jobID).Int("attempts", attempt-1).Msg("render: video deadline reached")
			return domain.RenderResult{}, fmt.Errorf("%w: deadline after %d attempts", domain.ErrProviderTimedOut, attempt-1)
		}

		resp, err := p.fetcher.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RenderResult{}, fmt.Errorf("poll aborted: %w", ctx.Err())
			}
			// A transient status-fetch error counts as a pending
			// observation; the attempt budget still bounds the loop.
			p.logger.Debug().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("render: status fetch failed")
		} else {
			switch classify(resp) {
			case outcomeFailed:
				p.logger.Warn().
					Str("job_id", jobID).
					Str("kind", string(kind)).
					Int("status_code", resp.Code).
					Str("provider_error", resp.ErrorMessage).
					Int("attempt", attempt).
					Msg("render: job failed")
				if resp.ErrorMessage != "" {
					return domain.RenderResult{}, fmt.Errorf("%w: %s", domain.ErrProviderFailed, resp.ErrorMessage)
				}
				return domain.RenderResult{}, fmt.Errorf("%w: status code %d", domain.ErrProviderFailed, resp.Code)
			case outcomeSucceeded:
				url := resp.resolveURL(kind)
				if url == "" {
					return domain.RenderResult{}, fmt.Errorf("%w: no resolvable url in status code %d", domain.ErrMalformedResult, resp.Code)
				}
				download := resp.FileDownloadURL
				if download == "" {
					download = url
				}
				p.logger.Info().
					Str("job_id", jobID).
					Str("kind", string(kind)).
					Int("attempt", attempt).
					Msg("render: job succeeded")
				return domain.RenderResult{
					PrimaryURL:  url,
					DownloadURL: download,
					Metadata: map[string]any{
						"status_code": resp.Code,
						"attempts":    attempt,
					},
				}, nil
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}

		wait := p.cfg.PollInterval
		if !deadline.IsZero() {
			if remaining := deadline.Sub(p.clock.Now()); remaining < wait {
				if remaining <= 0 {
					p.logger.Warn().Str("job_id", jobID).Int("attempts", attempt).Msg("render: video deadline reached")
					return domain.RenderResult{}, fmt.Errorf("%w: deadline after %d attempts", domain.ErrProviderTimedOut, attempt)
				}
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			return domain.RenderResult{}, fmt.Errorf("poll aborted: %w", ctx.Err())
		case <-p.clock.After(wait):
		}
	}

	p.logger.Warn().Str("job_id", jobID).Str("kind", string(kind)).Int("attempts", p.cfg.MaxAttempts).Msg("render: attempts exhausted")
	return domain.RenderResult{}, fmt.Errorf("%w: %d attempts exhausted", domain.ErrProviderTimedOut, p.cfg.MaxAttempts)
}

type outcomeClass int

const (
	outcomePending outcomeClass = iota
	outcomeSucceeded
	outcomeFailed
)

// classify orders the checks so that the failure markers win: code 3 also
// satisfies the >= 2 success range, and an error message can arrive with
// any code.
func classify(resp StatusResponse) outcomeClass {
	if resp.ErrorMessage != "" || resp.Code == 3 || resp.Code < 0 {
		return outcomeFailed
	}
	if resp.Code >= 2 && resp.hasPayload() {
		return outcomeSucceeded
	}
	return outcomePending
}
