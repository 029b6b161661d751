package domain

import "errors"

// Sentinel errors shared across layers. Wrap with fmt.Errorf("...: %w")
// and match with errors.Is.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyFeedback rejects whitespace-only analyst feedback before
	// any reanalysis state change.
	ErrEmptyFeedback = errors.New("feedback text is empty")

	// ErrReanalysisPending rejects a second feedback submission while a
	// case is still re-analyzing.
	ErrReanalysisPending = errors.New("reanalysis already in progress")

	// ErrCaseClosed rejects mutations of a case after a human decision.
	ErrCaseClosed = errors.New("case is closed")

	// ErrRescoreUnavailable signals that the remote rescorer could not
	// serve the request; callers fall back to the local engine.
	ErrRescoreUnavailable = errors.New("rescorer unavailable")

	// ErrRateLimited rejects feedback submissions that exceed the
	// per-case reanalysis budget.
	ErrRateLimited = errors.New("reanalysis rate limit exceeded")
)
