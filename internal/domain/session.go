package domain

import "time"

// Step enumerates the conversation states a user moves through between
// uploading a product photo and receiving a generated result.
type Step string

const (
	StepIdle                Step = "idle"
	StepAwaitingCategory    Step = "awaiting_category"
	StepAwaitingGender      Step = "awaiting_gender"
	StepSelectingModel      Step = "selecting_model"
	StepSelectingBackground Step = "selecting_background"
	StepReviewReady         Step = "review_ready"
	StepGenerating          Step = "generating"
	StepVideoOffered        Step = "video_offered"
	StepGeneratingVideo     Step = "generating_video"
)

func (s Step) String() string { return string(s) }

// ResultRef points at a finished render: the hosted asset plus a direct
// download link when the provider exposes one.
type ResultRef struct {
	URL         string
	DownloadURL string
}

// Session is the per-user conversation state. It exists only between the
// first photo upload and an explicit reset, stop, or idle timeout. All
// access goes through the session store; the struct itself carries no locks.
type Session struct {
	UserID         string
	Step           Step
	SourceImageRef string

	Category string
	Gender   string

	ModelIndex         int
	BackgroundIndex    int
	SelectedModel      string
	SelectedBackground string

	// Opaque collaborator outputs, carried through untouched.
	ColorPalette    []string
	ColorConfidence float64

	LastResult *ResultRef

	UpdatedAt time.Time
}

// Advance moves a carousel index by delta within a catalog of the given
// size, wrapping in both directions. A step back from 0 lands on count-1.
func Advance(index, delta, count int) int {
	if count <= 0 {
		return 0
	}
	return ((index+delta)%count + count) % count
}
