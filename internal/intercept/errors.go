package intercept

import (
	"errors"
	"fmt"
)

// Error is returned by a wrapped call when recording the call failed.
//
// A target's own error is never wrapped in an Error: the caller receives it
// exactly as the target returned it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Function is the name the target was wrapped under.
	Function string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes interceptor errors.
type ErrorCode string

const (
	// ErrCodeSinkWrite indicates the record could not be appended to the sink.
	ErrCodeSinkWrite ErrorCode = "SINK_WRITE"

	// ErrCodeTargetFailure marks a failed target call in log output.
	ErrCodeTargetFailure ErrorCode = "TARGET_FAILURE"

	// ErrCodeSerialization indicates an argument or result has no record form.
	ErrCodeSerialization ErrorCode = "SERIALIZATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Function, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsSinkWriteError returns true if the error is a sink write failure.
// Uses errors.As to handle wrapped errors.
func IsSinkWriteError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeSinkWrite
	}
	return false
}

// IsSerializationError returns true if an argument or result could not be
// converted to a record value.
func IsSerializationError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeSerialization
	}
	return false
}

func newSinkWriteError(function string, err error) *Error {
	return &Error{Code: ErrCodeSinkWrite, Function: function, Err: err}
}

func newSerializationError(function, what string, err error) *Error {
	return &Error{
		Code:     ErrCodeSerialization,
		Function: function,
		Err:      fmt.Errorf("%s: %w", what, err),
	}
}
