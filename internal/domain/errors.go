// Package domain defines core types, interfaces, and errors for the lineage service.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input. Requests failing validation are
// rejected before the cache or any edge source is consulted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SourceUnavailableError indicates the lineage edge source failed to answer.
type SourceUnavailableError struct {
	Message string
	Err     error
}

func (e *SourceUnavailableError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// TimeoutError indicates the lineage edge source exceeded its time bound.
// It is deliberately distinct from SourceUnavailableError.
type TimeoutError struct {
	Message string
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSourceUnavailable creates a SourceUnavailableError wrapping err.
func ErrSourceUnavailable(err error, format string, args ...interface{}) *SourceUnavailableError {
	return &SourceUnavailableError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrTimeout creates a TimeoutError wrapping err.
func ErrTimeout(err error, format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ClassifySourceError converts an error returned by an edge source into
// either a TimeoutError or a SourceUnavailableError. Errors that are already
// classified are returned unchanged.
func ClassifySourceError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var timeout *TimeoutError
	var unavailable *SourceUnavailableError
	switch {
	case errors.As(err, &timeout), errors.As(err, &unavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout(err, format, args...)
	default:
		return ErrSourceUnavailable(err, format, args...)
	}
}
