package domain

import "errors"

var (
	// ErrValidation marks input rejected before any mutation: bad quantity, missing field,
	// same-base transfer, event id reused for a different movement.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock marks a movement that would drive a position below what it holds.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrForbidden is an RBAC denial. Callers must not add details about the denied resource.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is storage contention or a transient commit failure. Retry with the same event id.
	ErrConflict = errors.New("conflict, retry")

	// ErrNotFound marks a base, asset or user that is absent from reference data.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated marks a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrDuplicateEvent is returned by stores when the event id is already in the log.
	ErrDuplicateEvent = errors.New("duplicate event id")
)
