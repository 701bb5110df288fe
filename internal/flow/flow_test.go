package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/session"
)

type sentMessage struct {
	kind    string // text, photo, video, menu
	text    string
	url     string
	buttons []Button
}

type recordingResponder struct {
	sent []sentMessage
}

func (r *recordingResponder) SendText(_ context.Context, _, text string) error {
	r.sent = append(r.sent, sentMessage{kind: "text", text: text})
	return nil
}

func (r *recordingResponder) SendPhoto(_ context.Context, _, url, caption string) error {
	r.sent = append(r.sent, sentMessage{kind: "photo", url: url, text: caption})
	return nil
}

func (r *recordingResponder) SendVideo(_ context.Context, _, url string) error {
	r.sent = append(r.sent, sentMessage{kind: "video", url: url})
	return nil
}

func (r *recordingResponder) SendMenu(_ context.Context, _, text string, buttons []Button) error {
	r.sent = append(r.sent, sentMessage{kind: "menu", text: text, buttons: buttons})
	return nil
}

func (r *recordingResponder) last() sentMessage {
	if len(r.sent) == 0 {
		return sentMessage{}
	}
	return r.sent[len(r.sent)-1]
}

type staticCatalog struct {
	models      []domain.CatalogItem
	backgrounds []domain.CatalogItem
}

func (c staticCatalog) Models(gender string) []domain.CatalogItem {
	return domain.FilterByGender(c.models, gender)
}

func (c staticCatalog) Backgrounds(gender string) []domain.CatalogItem {
	return domain.FilterByGender(c.backgrounds, gender)
}

type stubGenerator struct {
	imageRef  domain.ResultRef
	imageErr  error
	videoRes  domain.RenderResult
	videoErr  error
	imageRuns int
	videoRuns int
}

func (g *stubGenerator) GenerateImage(_ context.Context, _ string) (domain.ResultRef, error) {
	g.imageRuns++
	return g.imageRef, g.imageErr
}

func (g *stubGenerator) GenerateVideo(_ context.Context, _ string) (domain.RenderResult, error) {
	g.videoRuns++
	return g.videoRes, g.videoErr
}

type stubPalette struct{}

func (stubPalette) Extract(_ context.Context, _ string) ([]string, float64, error) {
	return []string{"#101010", "#fefefe"}, 0.9, nil
}

func items(prefix, gender string, n int) []domain.CatalogItem {
	out := make([]domain.CatalogItem, n)
	for i := range out {
		out[i] = domain.CatalogItem{
			ID:     fmt.Sprintf("%s-%d", prefix, i),
			Ref:    fmt.Sprintf("https://catalog.example.com/%s/%d", prefix, i),
			Gender: gender,
		}
	}
	return out
}

type engineFixture struct {
	engine    *Engine
	sessions  *session.Store
	generator *stubGenerator
	responder *recordingResponder
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		sessions:  session.NewStore(clockwork.NewFakeClock()),
		generator: &stubGenerator{imageRef: domain.ResultRef{URL: "https://cdn.example.com/r.png", DownloadURL: "https://cdn.example.com/r_dl.png"}},
		responder: &recordingResponder{},
	}
	catalog := staticCatalog{
		models:      append(items("model", "female", 3), items("model", "male", 2)...),
		backgrounds: items("bg", "", 4),
	}
	f.engine = NewEngine(f.sessions, f.generator, catalog, stubPalette{}, f.responder, zerolog.Nop())
	return f
}

// walk drives the session from photo upload to the given step.
func (f *engineFixture) walkTo(t *testing.T, userID string, step domain.Step) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.HandlePhoto(ctx, userID, "upload-1"))
	if step == domain.StepAwaitingCategory {
		return
	}
	require.NoError(t, f.engine.HandleButton(ctx, userID, ActionCategory, "clothing"))
	if step == domain.StepAwaitingGender {
		return
	}
	require.NoError(t, f.engine.HandleButton(ctx, userID, ActionGender, "female"))
	if step == domain.StepSelectingModel {
		return
	}
	require.NoError(t, f.engine.HandleButton(ctx, userID, ActionModelSelect, ""))
	if step == domain.StepSelectingBackground {
		return
	}
	require.NoError(t, f.engine.HandleButton(ctx, userID, ActionBackgroundSelect, ""))
}

func TestPhotoUploadStartsSession(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.HandlePhoto(context.Background(), "u1", "upload-1"))

	sess, err := f.sessions.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitingCategory, sess.Step)
	assert.Equal(t, "upload-1", sess.SourceImageRef)
	assert.Equal(t, []string{"#101010", "#fefefe"}, sess.ColorPalette)
	assert.Equal(t, "menu", f.responder.last().kind)
}

func TestPhotoUploadResetsPriorProgress(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)

	require.NoError(t, f.engine.HandlePhoto(context.Background(), "u1", "upload-2"))

	sess, _ := f.sessions.Get("u1")
	assert.Equal(t, domain.StepAwaitingCategory, sess.Step)
	assert.Equal(t, "upload-2", sess.SourceImageRef)
	assert.Empty(t, sess.SelectedModel)
}

func TestFullHappyPathToReview(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)

	sess, err := f.sessions.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StepReviewReady, sess.Step)
	assert.Equal(t, "clothing", sess.Category)
	assert.Equal(t, "female", sess.Gender)
	assert.NotEmpty(t, sess.SelectedModel)
	assert.NotEmpty(t, sess.SelectedBackground)

	last := f.responder.last()
	assert.Equal(t, "menu", last.kind)
	require.NotEmpty(t, last.buttons)
	assert.Equal(t, ActionGenerate, last.buttons[0].Action)
}

func TestTextActsAsCategoryOnlyInCategoryStep(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepAwaitingCategory)

	require.NoError(t, f.engine.HandleText(context.Background(), "u1", "jewelry"))
	sess, _ := f.sessions.Get("u1")
	assert.Equal(t, "jewelry", sess.Category)
	assert.Equal(t, domain.StepAwaitingGender, sess.Step)

	require.NoError(t, f.engine.HandleText(context.Background(), "u1", "random words"))
	sess, _ = f.sessions.Get("u1")
	assert.Equal(t, domain.StepAwaitingGender, sess.Step)
}

func TestModelCarouselWrapsBothWays(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepSelectingModel)
	ctx := context.Background()

	// 3 female models; one step back from 0 wraps to 2.
	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionModelPrev, ""))
	sess, _ := f.sessions.Get("u1")
	assert.Equal(t, 2, sess.ModelIndex)

	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionModelNext, ""))
	sess, _ = f.sessions.Get("u1")
	assert.Equal(t, 0, sess.ModelIndex)

	assert.Equal(t, "photo", f.responder.last().kind)
}

func TestCarouselFiltersByGender(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.HandlePhoto(ctx, "u1", "upload-1"))
	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionCategory, "clothing"))
	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionGender, "male"))

	// 2 male models; next from 0 is 1, next again wraps to 0.
	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionModelNext, ""))
	sess, _ := f.sessions.Get("u1")
	assert.Equal(t, 1, sess.ModelIndex)

	require.NoError(t, f.engine.HandleButton(ctx, "u1", ActionModelNext, ""))
	sess, _ = f.sessions.Get("u1")
	assert.Equal(t, 0, sess.ModelIndex)
}

func TestGenerateDeliversResultWithAnimateOffer(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionGenerate, ""))

	assert.Equal(t, 1, f.generator.imageRuns)
	last := f.responder.last()
	assert.Equal(t, "menu", last.kind)
	assert.Equal(t, "https://cdn.example.com/r.png", last.text)
	require.NotEmpty(t, last.buttons)
	assert.Equal(t, ActionAnimate, last.buttons[0].Action)
}

func TestGenerateFailureTellsUserAboutRefund(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)
	f.generator.imageErr = fmt.Errorf("%w: bad render", domain.ErrProviderFailed)

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionGenerate, ""))

	last := f.responder.last()
	assert.Equal(t, "text", last.kind)
	assert.Contains(t, last.text, "refunded")
}

func TestInsufficientCreditsMessageCarriesAmounts(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)
	f.generator.imageErr = &domain.InsufficientCreditsError{Required: 1, Available: 0}

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionGenerate, ""))

	last := f.responder.last()
	assert.Contains(t, last.text, "needs 1")
	assert.Contains(t, last.text, "have 0")
}

func TestGuardBusyMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)
	f.generator.videoErr = domain.ErrGuardBusy

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionAnimate, ""))

	assert.Contains(t, f.responder.last().text, "already rendering")
}

func TestAnimateDeliversVideo(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)
	f.generator.videoRes = domain.RenderResult{PrimaryURL: "https://cdn.example.com/clip.mp4"}

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionAnimate, ""))

	assert.Equal(t, 1, f.generator.videoRuns)
	last := f.responder.last()
	assert.Equal(t, "video", last.kind)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", last.url)
}

func TestStopClearsSession(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepReviewReady)

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionStop, ""))

	_, err := f.sessions.Get("u1")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestButtonWithoutSessionGuidesRestart(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionGenerate, ""))

	assert.Equal(t, 0, f.generator.imageRuns)
	assert.Contains(t, f.responder.last().text, "new photo")
}

func TestIllegalStepActionLeavesSessionUntouched(t *testing.T) {
	f := newEngineFixture(t)
	f.walkTo(t, "u1", domain.StepAwaitingGender)

	require.NoError(t, f.engine.HandleButton(context.Background(), "u1", ActionModelNext, ""))

	sess, _ := f.sessions.Get("u1")
	assert.Equal(t, domain.StepAwaitingGender, sess.Step)
	assert.Equal(t, "text", f.responder.last().kind)
}
