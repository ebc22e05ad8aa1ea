// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the actor's role or ownership does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., second certificate for an application).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username taken")

	// ErrDuplicateApplication indicates an active application for the same (student, job) pair exists.
	ErrDuplicateApplication = errors.New("duplicate application")

	// ErrNotAcceptingApplications indicates the job posting is closed, expired or full.
	ErrNotAcceptingApplications = errors.New("job is not accepting applications")

	// ErrInvalidTransition indicates the lifecycle does not permit the event from the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidState indicates the entity is not in a state that permits the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation indicates malformed input; concrete failures are *ValidationError.
	ErrValidation = errors.New("validation")

	// ErrCollision indicates a generated identifier clashed with a stored one; retrying with a new one is safe.
	ErrCollision = errors.New("identifier collision")

	// ErrCollaboratorUnavailable indicates the AI service could not be reached or failed.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field string
	Msg   string
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return "validation: " + e.Field + ": " + e.Msg
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }
