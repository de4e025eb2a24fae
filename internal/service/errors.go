package service

import "errors"

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrPostNotPending    = errors.New("cannot delete a non-pending post")
	ErrPostNotPublishing = errors.New("post is not publishing")
	ErrSweepInProgress   = errors.New("a sweep is already in progress")
)

// ValidationError reports bad client input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
