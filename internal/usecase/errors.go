package usecase

import "errors"

// EmptyFieldMessage is shown under the symbol inputs when validation fails.
const EmptyFieldMessage = "Please fill both asset fields"

var (
	ErrEmptyField        = errors.New(EmptyFieldMessage)
	ErrInvalidTimeframe  = errors.New("unsupported timeframe")
	ErrInvalidTransition = errors.New("action not allowed in current view")
	ErrSessionClosed     = errors.New("session closed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTooManySessions   = errors.New("too many open sessions")
	ErrRunThrottled      = errors.New("too many analysis runs, try again shortly")
)
