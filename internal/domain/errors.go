package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired means no session exists for an action that requires
	// one. The user has to restart the flow from a fresh photo upload.
	ErrSessionExpired = errors.New("session expired")

	// ErrLedgerUnavailable marks a transport-level failure talking to the
	// credit ledger. Never interpreted as a zero balance.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrProviderFailed is an explicit failure reported by the render
	// provider for a submitted job.
	ErrProviderFailed = errors.New("provider failed")

	// ErrProviderTimedOut means the poll bounds were exhausted without a
	// terminal answer from the provider.
	ErrProviderTimedOut = errors.New("provider timed out")

	// ErrMalformedResult is a success status whose payload carried no
	// resolvable asset URL. Refund-wise it behaves like ErrProviderFailed.
	ErrMalformedResult = errors.New("malformed provider result")

	// ErrGuardBusy means a video job is already running for this user.
	ErrGuardBusy = errors.New("video generation already in progress")
)

// InsufficientCreditsError is surfaced verbatim to the user with the amounts
// involved. No debit has happened when this is returned.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

// StepError rejects an action that is not legal for the session's current
// conversation step.
type StepError struct {
	Step   Step
	Action string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("action %q not allowed in step %s", e.Action, e.Step)
}
