package service

import (
	"errors"
	"fmt"

	"attendbot/internal/geo"
	"attendbot/internal/repository"
)

// Validation errors: recoverable locally, surfaced to the user verbatim via
// the chat transport, never retried automatically.
var (
	// ErrOutsideWindow indicates the instant falls outside the configured
	// workdays in the school time zone.
	ErrOutsideWindow = errors.New("service: outside attendance window")

	// ErrOutOfRange indicates coordinates beyond the geofence radius.
	ErrOutOfRange = errors.New("service: outside geofence radius")

	// ErrInvalidCoordinates re-exports the geofence validation failure.
	ErrInvalidCoordinates = geo.ErrInvalidCoordinates
)

// State-conflict errors are propagated from the store unchanged so that a
// retried request observes exactly what the committed state dictates.
var (
	ErrAlreadyOpen   = repository.ErrAlreadyOpen
	ErrAlreadyClosed = repository.ErrAlreadyClosed
	ErrNoOpenSession = repository.ErrNoOpenSession
)

// Infrastructure errors.
var (
	// ErrStorageUnavailable wraps any storage failure. The request performed
	// no partial write; retries are the caller's decision.
	ErrStorageUnavailable = errors.New("service: storage unavailable")

	// ErrNotAccepting indicates this instance is draining during a rollover
	// and refuses new writes; the replacement instance takes them.
	ErrNotAccepting = errors.New("service: instance not accepting writes")
)

// OutOfRangeError carries the measured distance so the transport can tell
// the user how far off they are. Matches ErrOutOfRange under errors.Is.
type OutOfRangeError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("service: %s, allowed %.0fm", geo.DistanceDescription(e.DistanceMeters), e.RadiusMeters)
}

// Is reports a match against ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
