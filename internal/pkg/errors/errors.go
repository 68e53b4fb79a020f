package errors

import "errors"

// Application-level sentinel errors. Handlers map them to HTTP statuses.
var (
	// ErrNotFound record missing or not owned by the caller
	ErrNotFound = errors.New("record not found")

	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")

	ErrValidation = errors.New("validation failed")

	ErrExpiredToken = errors.New("token is expired")

	ErrConflict = errors.New("resource state conflict")

	// ErrAlreadyCompleted finalize was called for a session that has already been scored.
	ErrAlreadyCompleted = errors.New("test session already completed")

	// ErrFinalizeInProgress another request is finalizing the same session right now.
	ErrFinalizeInProgress = errors.New("test session finalize already in progress")
)
