// Package orchestrator runs the money-bearing generation flow: validate the
// session, debit credits, submit and poll a render job, then settle. The
// ledger and the render provider share no transaction, so the debit is
// optimistic and every failure after it must compensate (saga style).
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/guard"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/history"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/render"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/session"
)

// Ledger is the slice of the credit client the orchestrator uses.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string, kind domain.JobKind) (int, error)
	Credit(ctx context.Context, userID string, amount int, reason, opRef string) error
	Cost(kind domain.JobKind) int
}

// Submitter starts render jobs.
type Submitter interface {
	Submit(ctx context.Context, req render.SubmitRequest) (string, error)
}

// JobPoller drives a submitted job to its terminal outcome.
type JobPoller interface {
	Poll(ctx context.Context, jobID string, kind domain.JobKind) (domain.RenderResult, error)
}

// PromptSource assembles the provider prompt from session state. The
// orchestrator passes its output through without inspecting it.
type PromptSource interface {
	Compose(sess domain.Session, kind domain.JobKind) string
}

type noPrompt struct{}

func (noPrompt) Compose(domain.Session, domain.JobKind) string { return "" }

// Orchestrator composes the session store, ledger, provider, and video
// guard into the end-to-end generation flow.
type Orchestrator struct {
	sessions *session.Store
	ledger   Ledger
	provider Submitter
	poller   JobPoller
	guard    guard.VideoGuard
	history  history.Store
	prompts  PromptSource
	clock    clockwork.Clock
	logger   infra.Logger
}

// Options wires the orchestrator's collaborators. Prompts and History may
// be nil; they default to a no-op source and an in-memory store.
type Options struct {
	Sessions *session.Store
	Ledger   Ledger
	Provider Submitter
	Poller   JobPoller
	Guard    guard.VideoGuard
	History  history.Store
	Prompts  PromptSource
	Clock    clockwork.Clock
	Logger   infra.Logger
}

func New(opts Options) *Orchestrator {
	prompts := opts.Prompts
	if prompts == nil {
		prompts = noPrompt{}
	}
	hist := opts.History
	if hist == nil {
		hist = history.NewMemory()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		sessions: opts.Sessions,
		ledger:   opts.Ledger,
		provider: opts.Provider,
		poller:   opts.Poller,
		guard:    opts.Guard,
		history:  hist,
		prompts:  prompts,
		clock:    clock,
		logger:   opts.Logger,
	}
}

// GenerateImage runs the image path: ReviewReady → debit → submit → poll.
// On success the session holds the result and moves to VideoOffered; on any
// failure after the debit the user is refunded and the session returns to
// ReviewReady so a retry needs no re-upload.
func (o *Orchestrator) GenerateImage(ctx context.Context, userID string) (domain.ResultRef, error) {
	sess, err := o.sessions.Get(userID)
	if err != nil {
		return domain.ResultRef{}, err
	}
	if sess.Step != domain.StepReviewReady {
		return domain.ResultRef{}, &domain.StepError{Step: sess.Step, Action: "generate"}
	}
	if sess.SourceImageRef == "" || sess.SelectedModel == "" || sess.SelectedBackground == "" {
		return domain.ResultRef{}, &domain.StepError{Step: sess.Step, Action: "generate"}
	}

	if _, err := o.sessions.Update(userID, stepTo(domain.StepGenerating)); err != nil {
		return domain.ResultRef{}, err
	}

	result, runErr := o.runJob(ctx, userID, domain.JobKindImage, render.SubmitRequest{
		Kind:           domain.JobKindImage,
		SourceImageRef: sess.SourceImageRef,
		Prompt:         o.prompts.Compose(sess, domain.JobKindImage),
		ModelRef:       sess.SelectedModel,
		BackgroundRef:  sess.SelectedBackground,
		ColorPalette:   sess.ColorPalette,
	})
	if runErr != nil {
		if _, err := o.sessions.Update(userID, stepTo(domain.StepReviewReady)); err != nil {
			o.logger.Debug().Str("user_id", userID).Msg("orchestrator: session gone before revert")
		}
		return domain.ResultRef{}, runErr
	}

	ref := domain.ResultRef{URL: result.PrimaryURL, DownloadURL: result.DownloadURL}
	if _, err := o.sessions.Update(userID, func(s *domain.Session) error {
		s.LastResult = &ref
		s.Step = domain.StepVideoOffered
		return nil
	}); err != nil {
		// The user stopped the session mid-render. The work is done and
		// paid for; hand the result back anyway.
		o.logger.Info().Str("user_id", userID).Msg("orchestrator: session gone before result store")
	}
	return ref, nil
}

// GenerateVideo runs the video path. It is the only flow reachable from a
// persistent button, so the video guard deduplicates concurrent requests
// before any money moves.
func (o *Orchestrator) GenerateVideo(ctx context.Context, userID string) (domain.RenderResult, error) {
	sess, err := o.sessions.Get(userID)
	if err != nil {
		return domain.RenderResult{}, err
	}
	// A duplicate tap arrives while the step is already GeneratingVideo;
	// that case belongs to the guard, which answers GuardBusy, not to the
	// step check.
	if sess.Step != domain.StepVideoOffered && sess.Step != domain.StepGeneratingVideo {
		return domain.RenderResult{}, &domain.StepError{Step: sess.Step, Action: "animate"}
	}
	if sess.LastResult == nil {
		return domain.RenderResult{}, &domain.StepError{Step: sess.Step, Action: "animate"}
	}

	acquired, err := o.guard.TryAcquire(ctx, userID)
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("acquire video slot: %w", err)
	}
	if !acquired {
		return domain.RenderResult{}, domain.ErrGuardBusy
	}
	defer o.guard.Release(ctx, userID)

	if _, err := o.sessions.Update(userID, stepTo(domain.StepGeneratingVideo)); err != nil {
		return domain.RenderResult{}, err
	}
	// Whatever happens, the video offer stays open for another attempt.
	defer func() {
		if _, err := o.sessions.Update(userID, stepTo(domain.StepVideoOffered)); err != nil {
			o.logger.Debug().Str("user_id", userID).Msg("orchestrator: session gone before video revert")
		}
	}()

	result, runErr := o.runJob(ctx, userID, domain.JobKindVideo, render.SubmitRequest{
		Kind:           domain.JobKindVideo,
		ResultImageURL: sess.LastResult.DownloadURL,
		Prompt:         o.prompts.Compose(sess, domain.JobKindVideo),
		ColorPalette:   sess.ColorPalette,
	})
	if runErr != nil {
		return domain.RenderResult{}, runErr
	}
	return result, nil
}

// runJob is the shared debit → submit → poll → settle sequence. The debit
// comes first because the provider has no pre-authorization primitive;
// every error past that point refunds exactly once.
func (o *Orchestrator) runJob(ctx context.Context, userID string, kind domain.JobKind, req render.SubmitRequest) (domain.RenderResult, error) {
	cost := o.ledger.Cost(kind)

	// Balance is checked before the debit so an underfunded request makes
	// no charge attempt at all. A ledger outage here means "cannot
	// proceed", never "zero balance".
	balance, err := o.ledger.Balance(ctx, userID)
	if err != nil {
		return domain.RenderResult{}, err
	}
	if balance < cost {
		return domain.RenderResult{}, &domain.InsufficientCreditsError{Required: cost, Available: balance}
	}

	if _, err := o.ledger.Debit(ctx, userID, kind); err != nil {
		return domain.RenderResult{}, err
	}

	jobID, err := o.provider.Submit(ctx, req)
	if err != nil {
		o.compensate(ctx, userID, cost, err)
		o.recordAttempt(ctx, userID, kind, "", cost, domain.JobStatusFailed, true)
		return domain.RenderResult{}, fmt.Errorf("%w: submit: %v", domain.ErrProviderFailed, err)
	}

	o.logger.Info().
		Str("user_id", userID).
		Str("job_id", jobID).
		Str("kind", string(kind)).
		Int("cost", cost).
		Msg("orchestrator: job submitted")

	result, err := o.poller.Poll(ctx, jobID, kind)
	if err != nil {
		o.compensate(ctx, userID, cost, err)
		o.recordAttempt(ctx, userID, kind, jobID, cost, outcomeOf(err), true)
		return domain.RenderResult{}, err
	}

	o.recordAttempt(ctx, userID, kind, jobID, cost, domain.JobStatusSucceeded, false)
	return result, nil
}

// compensate issues exactly one refund attempt. A failed compensation is
// financial drift: it goes to the reconciliation log with everything needed
// to settle it by hand, and is not retried inline.
func (o *Orchestrator) compensate(ctx context.Context, userID string, amount int, cause error) {
	opRef := uuid.NewString()
	err := o.ledger.Credit(ctx, userID, amount, "generation failed: "+cause.Error(), opRef)
	if err == nil {
		o.logger.Info().
			Str("user_id", userID).
			Int("amount", amount).
			Str("op_ref", opRef).
			Msg("orchestrator: refund issued")
		return
	}

	o.logger.Error().
		Err(err).
		Str("user_id", userID).
		Int("amount", amount).
		Str("op_ref", opRef).
		Str("original_error", cause.Error()).
		Msg("orchestrator: refund failed, queued for reconciliation")
	item := history.ReconciliationItem{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		OpRef:         opRef,
		OriginalError: cause.Error(),
		CreatedAt:     o.clock.Now(),
	}
	if recErr := o.history.RecordReconciliation(ctx, item); recErr != nil {
		o.logger.Error().Err(recErr).Str("user_id", userID).Msg("orchestrator: reconciliation record failed")
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, userID string, kind domain.JobKind, jobID string, cost int, outcome domain.JobStatus, refunded bool) {
	a := history.Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		JobID:     jobID,
		Cost:      cost,
		Outcome:   outcome,
		Refunded:  refunded,
		CreatedAt: o.clock.Now(),
	}
	if err := o.history.RecordAttempt(ctx, a); err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("orchestrator: attempt record failed")
	}
}

func outcomeOf(err error) domain.JobStatus {
	if errors.Is(err, domain.ErrProviderTimedOut) {
		return domain.JobStatusTimedOut
	}
	return domain.JobStatusFailed
}

func stepTo(step domain.Step) func(*domain.Session) error {
	return func(s *domain.Session) error {
		s.Step = step
		return nil
	}
}
