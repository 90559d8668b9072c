package core

import "errors"

// Error codes for domain errors. These are the classification the
// transport layer maps to HTTP statuses and WS error frames.
const (
	ErrCodeConflict     = "conflict"
	ErrCodeNotFound     = "not_found"
	ErrCodeForbidden    = "forbidden"
	ErrCodeValidation   = "validation"
	ErrCodeInvalidState = "invalid_state"
	ErrCodeInternal     = "internal"
)

var (
	ErrNotJoined     = errors.New("not joined")
	ErrAlreadyJoined = errors.New("already joined")
	ErrNoActiveScope = errors.New("no active scope")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
