// Package flow is the conversation engine: it receives discrete user
// actions from the chat transport, walks the session through the styling
// steps, and hands money-bearing work to the orchestrator. It never
// imports a chat SDK; delivery goes through the Responder interface.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/session"
)

// Button actions delivered by the transport when the user taps.
const (
	ActionCategory         = "category"
	ActionGender           = "gender"
	ActionModelPrev        = "model_prev"
	ActionModelNext        = "model_next"
	ActionModelSelect      = "model_select"
	ActionBackgroundPrev   = "bg_prev"
	ActionBackgroundNext   = "bg_next"
	ActionBackgroundSelect = "bg_select"
	ActionGenerate         = "generate"
	ActionAnimate          = "animate"
	ActionStop             = "stop"
)

// Button is one tappable option sent back to the user.
type Button struct {
	Label   string
	Action  string
	Payload string
}

// Responder delivers engine output through the chat transport.
type Responder interface {
	SendText(ctx context.Context, userID, text string) error
	SendPhoto(ctx context.Context, userID, url, caption string) error
	SendVideo(ctx context.Context, userID, url string) error
	SendMenu(ctx context.Context, userID, text string, buttons []Button) error
}

// Generator is the slice of the orchestrator the engine drives.
type Generator interface {
	GenerateImage(ctx context.Context, userID string) (domain.ResultRef, error)
	GenerateVideo(ctx context.Context, userID string) (domain.RenderResult, error)
}

// PaletteExtractor produces the color data carried through to the
// provider. Its output is opaque to the engine.
type PaletteExtractor interface {
	Extract(ctx context.Context, imageRef string) (palette []string, confidence float64, err error)
}

// Engine dispatches transport events over the session state machine.
type Engine struct {
	sessions  *session.Store
	generator Generator
	catalog   domain.Catalog
	palette   PaletteExtractor
	responder Responder
	logger    infra.Logger
}

func NewEngine(sessions *session.Store, generator Generator, catalog domain.Catalog, palette PaletteExtractor, responder Responder, logger infra.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		generator: generator,
		catalog:   catalog,
		palette:   palette,
		responder: responder,
		logger:    logger,
	}
}

// HandlePhoto starts (or restarts) the flow. Uploading a new photo always
// resets the session: nothing from a previous cycle carries over.
func (e *Engine) HandlePhoto(ctx context.Context, userID, imageRef string) error {
	e.sessions.Create(userID)

	var colors []string
	var confidence float64
	if e.palette != nil {
		var err error
		colors, confidence, err = e.palette.Extract(ctx, imageRef)
		if err != nil {
			// Palette is an enrichment, not a gate.
			e.logger.Warn().Err(err).Str("user_id", userID).Msg("flow: palette extraction failed")
		}
	}

	if _, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.SourceImageRef = imageRef
		s.ColorPalette = colors
		s.ColorConfidence = confidence
		return nil
	}); err != nil {
		return err
	}

	return e.responder.SendMenu(ctx, userID, "Got your photo. What are we shooting?", categoryButtons())
}

// HandleText routes free text. Outside the category step it only nudges the
// user back to the buttons.
func (e *Engine) HandleText(ctx context.Context, userID, text string) error {
	sess, err := e.sessions.Get(userID)
	if errors.Is(err, domain.ErrSessionExpired) {
		return e.responder.SendText(ctx, userID, "Send a product photo to get started.")
	}
	if err != nil {
		return err
	}
	if sess.Step == domain.StepAwaitingCategory {
		return e.setCategory(ctx, userID, text)
	}
	return e.responder.SendText(ctx, userID, "Use the buttons above to continue.")
}

// HandleButton dispatches a tapped button. Illegal taps for the current
// step answer with guidance and leave the session untouched.
func (e *Engine) HandleButton(ctx context.Context, userID, action, payload string) error {
	if action == ActionStop {
		return e.handleStop(ctx, userID)
	}

	sess, err := e.sessions.Get(userID)
	if errors.Is(err, domain.ErrSessionExpired) {
		return e.responder.SendText(ctx, userID, "That session is over. Send a new photo to start again.")
	}
	if err != nil {
		return err
	}

	switch action {
	case ActionCategory:
		if sess.Step != domain.StepAwaitingCategory {
			return e.rejectStep(ctx, userID, sess.Step, action)
		}
		return e.setCategory(ctx, userID, payload)
	case ActionGender:
		if sess.Step != domain.StepAwaitingGender {
			return e.rejectStep(ctx, userID, sess.Step, action)
		}
		return e.setGender(ctx, userID, payload)
	case ActionModelPrev, ActionModelNext:
		return e.navigateModels(ctx, userID, sess, deltaFor(action))
	case ActionModelSelect:
		return e.selectModel(ctx, userID, sess)
	case ActionBackgroundPrev, ActionBackgroundNext:
		return e.navigateBackgrounds(ctx, userID, sess, deltaFor(action))
	case ActionBackgroundSelect:
		return e.selectBackground(ctx, userID, sess)
	case ActionGenerate:
		return e.handleGenerate(ctx, userID)
	case ActionAnimate:
		return e.handleAnimate(ctx, userID)
	default:
		e.logger.Debug().Str("user_id", userID).Str("action", action).Msg("flow: unknown action")
		return e.responder.SendText(ctx, userID, "I did not understand that.")
	}
}

func deltaFor(action string) int {
	if action == ActionModelPrev || action == ActionBackgroundPrev {
		return -1
	}
	return 1
}

func (e *Engine) setCategory(ctx context.Context, userID, category string) error {
	if category == "" {
		return e.responder.SendText(ctx, userID, "Pick a category to continue.")
	}
	if _, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.Category = category
		s.Step = domain.StepAwaitingGender
		return nil
	}); err != nil {
		return err
	}
	return e.responder.SendMenu(ctx, userID, "Who should wear it?", genderButtons())
}

func (e *Engine) setGender(ctx context.Context, userID, gender string) error {
	sess, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.Gender = gender
		s.Step = domain.StepSelectingModel
		s.ModelIndex = 0
		return nil
	})
	if err != nil {
		return err
	}
	return e.showModel(ctx, userID, sess)
}

func (e *Engine) navigateModels(ctx context.Context, userID string, sess domain.Session, delta int) error {
	if sess.Step != domain.StepSelectingModel {
		return e.rejectStep(ctx, userID, sess.Step, "model navigation")
	}
	// Catalog membership is re-read on every tap; the wrap adapts when the
	// catalog changed size since the last one.
	count := len(e.catalog.Models(sess.Gender))
	updated, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.ModelIndex = domain.Advance(s.ModelIndex, delta, count)
		return nil
	})
	if err != nil {
		return err
	}
	return e.showModel(ctx, userID, updated)
}

func (e *Engine) showModel(ctx context.Context, userID string, sess domain.Session) error {
	models := e.catalog.Models(sess.Gender)
	if len(models) == 0 {
		return e.responder.SendText(ctx, userID, "No models available for that selection yet.")
	}
	idx := sess.ModelIndex
	if idx >= len(models) {
		idx = 0
	}
	return e.responder.SendPhoto(ctx, userID, models[idx].Ref, "Model "+models[idx].ID)
}

func (e *Engine) selectModel(ctx context.Context, userID string, sess domain.Session) error {
	if sess.Step != domain.StepSelectingModel {
		return e.rejectStep(ctx, userID, sess.Step, ActionModelSelect)
	}
	models := e.catalog.Models(sess.Gender)
	if len(models) == 0 {
		return e.responder.SendText(ctx, userID, "No models available for that selection yet.")
	}
	idx := sess.ModelIndex
	if idx >= len(models) {
		idx = 0
	}
	updated, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.SelectedModel = models[idx].Ref
		s.Step = domain.StepSelectingBackground
		s.BackgroundIndex = 0
		return nil
	})
	if err != nil {
		return err
	}
	return e.showBackground(ctx, userID, updated)
}

func (e *Engine) navigateBackgrounds(ctx context.Context, userID string, sess domain.Session, delta int) error {
	if sess.Step != domain.StepSelectingBackground {
		return e.rejectStep(ctx, userID, sess.Step, "background navigation")
	}
	count := len(e.catalog.Backgrounds(sess.Gender))
	updated, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.BackgroundIndex = domain.Advance(s.BackgroundIndex, delta, count)
		return nil
	})
	if err != nil {
		return err
	}
	return e.showBackground(ctx, userID, updated)
}

func (e *Engine) showBackground(ctx context.Context, userID string, sess domain.Session) error {
	backgrounds := e.catalog.Backgrounds(sess.Gender)
	if len(backgrounds) == 0 {
		return e.responder.SendText(ctx, userID, "No backgrounds available for that selection yet.")
	}
	idx := sess.BackgroundIndex
	if idx >= len(backgrounds) {
		idx = 0
	}
	return e.responder.SendPhoto(ctx, userID, backgrounds[idx].Ref, "Background "+backgrounds[idx].ID)
}

func (e *Engine) selectBackground(ctx context.Context, userID string, sess domain.Session) error {
	if sess.Step != domain.StepSelectingBackground {
		return e.rejectStep(ctx, userID, sess.Step, ActionBackgroundSelect)
	}
	backgrounds := e.catalog.Backgrounds(sess.Gender)
	if len(backgrounds) == 0 {
		return e.responder.SendText(ctx, userID, "No backgrounds available for that selection yet.")
	}
	idx := sess.BackgroundIndex
	if idx >= len(backgrounds) {
		idx = 0
	}
	if _, err := e.sessions.Update(userID, func(s *domain.Session) error {
		s.SelectedBackground = backgrounds[idx].Ref
		s.Step = domain.StepReviewReady
		return nil
	}); err != nil {
		return err
	}
	return e.responder.SendMenu(ctx, userID, "All set. Generate the shot?", []Button{
		{Label: "Generate (1 credit)", Action: ActionGenerate},
		{Label: "Stop", Action: ActionStop},
	})
}

func (e *Engine) handleGenerate(ctx context.Context, userID string) error {
	if err := e.responder.SendText(ctx, userID, "Rendering your shot, this can take a few minutes..."); err != nil {
		return err
	}
	ref, err := e.generator.GenerateImage(ctx, userID)
	if err != nil {
		return e.reportFailure(ctx, userID, err)
	}
	return e.responder.SendMenu(ctx, userID, ref.URL, []Button{
		{Label: "Animate (3 credits)", Action: ActionAnimate},
		{Label: "Stop", Action: ActionStop},
	})
}

func (e *Engine) handleAnimate(ctx context.Context, userID string) error {
	if err := e.responder.SendText(ctx, userID, "Animating your shot, hang tight..."); err != nil {
		return err
	}
	result, err := e.generator.GenerateVideo(ctx, userID)
	if err != nil {
		return e.reportFailure(ctx, userID, err)
	}
	return e.responder.SendVideo(ctx, userID, result.PrimaryURL)
}

// handleStop clears local state only. An in-flight render keeps running on
// the provider side until it finishes or expires there.
func (e *Engine) handleStop(ctx context.Context, userID string) error {
	e.sessions.Clear(userID)
	return e.responder.SendText(ctx, userID, "Stopped. Send a new photo whenever you are ready.")
}

func (e *Engine) rejectStep(ctx context.Context, userID string, step domain.Step, action string) error {
	e.logger.Debug().Str("user_id", userID).Str("step", step.String()).Str("action", action).Msg("flow: action rejected for step")
	return e.responder.SendText(ctx, userID, "That option is not available right now.")
}

// reportFailure maps the error taxonomy onto user-facing guidance. Every
// terminal failure leaves the session on a retryable step, so the messages
// all point at a retry rather than a restart.
func (e *Engine) reportFailure(ctx context.Context, userID string, err error) error {
	var ins *domain.InsufficientCreditsError
	switch {
	case errors.As(err, &ins):
		return e.responder.SendText(ctx, userID,
			fmt.Sprintf("Not enough credits: this needs %d, you have %d. Top up and try again.", ins.Required, ins.Available))
	case errors.Is(err, domain.ErrSessionExpired):
		return e.responder.SendText(ctx, userID, "That session is over. Send a new photo to start again.")
	case errors.Is(err, domain.ErrGuardBusy):
		return e.responder.SendText(ctx, userID, "A video is already rendering for you. Wait for it to finish.")
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return e.responder.SendText(ctx, userID, "The credit service is briefly unavailable. Nothing was charged; try again in a moment.")
	case errors.Is(err, domain.ErrProviderTimedOut):
		return e.responder.SendText(ctx, userID, "The render took too long and was refunded. Try again.")
	default:
		e.logger.Error().Err(err).Str("user_id", userID).Msg("flow: generation failed")
		return e.responder.SendText(ctx, userID, "The render failed and was refunded. Try again.")
	}
}

func categoryButtons() []Button {
	return []Button{
		{Label: "Clothing", Action: ActionCategory, Payload: "clothing"},
		{Label: "Shoes", Action: ActionCategory, Payload: "shoes"},
		{Label: "Accessories", Action: ActionCategory, Payload: "accessories"},
	}
}

func genderButtons() []Button {
	return []Button{
		{Label: "Female", Action: ActionGender, Payload: "female"},
		{Label: "Male", Action: ActionGender, Payload: "male"},
	}
}
