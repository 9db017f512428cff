package negotiation

import "errors"

var (
	// ErrInvalidLoad rejects session creation with a non-positive listed
	// rate or a margin fraction outside (0, 1].
	ErrInvalidLoad = errors.New("invalid load")

	// ErrInvalidOffer rejects non-positive carrier offers.
	ErrInvalidOffer = errors.New("invalid offer")

	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed means the session already reached a terminal status.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidState means the policy was invoked on a non-open session.
	// This is a caller bug, not a recoverable condition.
	ErrInvalidState = errors.New("invalid session state")
)
