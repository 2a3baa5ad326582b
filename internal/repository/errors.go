package repository

import "errors"

// State-conflict errors. These are expected outcomes of the session state
// machine under concurrent or repeated requests, not system failures. The
// losing writer of a race observes the committed post-write state and gets
// the matching error; no update is ever lost.
var (
	// ErrAlreadyOpen indicates a check-in for a user-day that already has an
	// open session.
	ErrAlreadyOpen = errors.New("repository: session already open")

	// ErrAlreadyClosed indicates a transition attempted on a closed session.
	// Closed is terminal; a session is never reopened.
	ErrAlreadyClosed = errors.New("repository: session already closed")

	// ErrNoOpenSession indicates a check-out with no open session for the
	// user-day (the "forgot to check in" case).
	ErrNoOpenSession = errors.New("repository: no open session")

	// ErrCheckOutBeforeCheckIn indicates a check-out instant earlier than the
	// recorded check-in. Timestamps within a session are non-decreasing.
	ErrCheckOutBeforeCheckIn = errors.New("repository: check-out precedes check-in")
)
