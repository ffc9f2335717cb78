package meditation

import (
	"errors"
	"fmt"
)

// codedError is a sentinel error carrying a stable code for log correlation.
type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// Code returns the stable error code used in handler summaries.
func (e *codedError) Code() string { return e.code }

var (
	// ErrIndexOutOfRange is returned when a positional index does not address a stored meditation.
	ErrIndexOutOfRange error = &codedError{code: "INDEX_OUT_OF_RANGE", msg: "meditation: index out of range"}
	// ErrNoActiveSession is returned when a practice session is ended while none is running.
	ErrNoActiveSession error = &codedError{code: "NO_ACTIVE_SESSION", msg: "meditation: no active session"}
	// ErrNoUpload is returned when an upload event arrives for a user without an upload in progress.
	ErrNoUpload error = &codedError{code: "NO_UPLOAD", msg: "meditation: no upload in progress"}
	// ErrUnexpectedEvent is returned when the event kind does not match the current upload step.
	ErrUnexpectedEvent error = &codedError{code: "UNEXPECTED_EVENT", msg: "meditation: event does not match upload step"}

	// ErrInvalidTime marks reminder times outside 00:00 to 23:59.
	ErrInvalidTime = errors.New("invalid time")
	// ErrUnsupportedMedia marks attachments that are neither audio nor video.
	ErrUnsupportedMedia = errors.New("unsupported media")
	// ErrInvalidTitle marks empty or reserved titles.
	ErrInvalidTitle = errors.New("invalid title")
	// ErrUnknownCategory marks category selections outside the configured set.
	ErrUnknownCategory = errors.New("unknown category")
)

// ValidationError reports user input that was rejected without changing state.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("meditation: invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("meditation: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap exposes the underlying sentinel for errors.Is checks.
func (e *ValidationError) Unwrap() error { return e.Err }

// Code returns the stable error code used in handler summaries.
func (e *ValidationError) Code() string { return "VALIDATION" }

func invalid(field string, err error, reason string) error {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
