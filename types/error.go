package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure for recovery decisions.
type ErrorKind string

const (
	// KindTransient marks retryable failures (network timeout, temporary unavailability).
	KindTransient ErrorKind = "TRANSIENT"
	// KindPermanent marks non-retryable failures (validation, authorization).
	KindPermanent ErrorKind = "PERMANENT"
	// KindDeadlineExceeded is produced exclusively by the Timeout primitive.
	KindDeadlineExceeded ErrorKind = "DEADLINE_EXCEEDED"
	// KindRateLimited is produced exclusively by the rate limiter in fail-fast mode.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindNoRouteMatched is produced exclusively by the Router.
	KindNoRouteMatched ErrorKind = "NO_ROUTE_MATCHED"
	// KindComposite aggregates multiple child failures.
	KindComposite ErrorKind = "COMPOSITE"
	// KindUnknown is returned by KindOf for errors carrying no classification.
	KindUnknown ErrorKind = ""
)

// Error represents a classified error with message and cause.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Primitive string    `json:"primitive,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new classified Error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Transient creates a new Error of kind Transient.
func Transient(message string) *Error { return NewError(KindTransient, message) }

// Permanent creates a new Error of kind Permanent.
func Permanent(message string) *Error { return NewError(KindPermanent, message) }

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithPrimitive records the primitive that produced the error.
func (e *Error) WithPrimitive(name string) *Error {
	e.Primitive = name
	return e
}

// KindOf extracts the classification from an error, walking the wrap chain.
// Plain context deadline/cancel errors map to DeadlineExceeded/Permanent so
// wrappers can make recovery decisions on them without special cases.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ce *CompositeError
	if errors.As(err, &ce) {
		return KindComposite
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	return KindUnknown
}

// IsTransient reports whether the error is classified Transient.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsPermanent reports whether the error is classified Permanent.
func IsPermanent(err error) bool { return KindOf(err) == KindPermanent }

// CompositeError aggregates multiple child failures while preserving each
// child's original classification for inspection.
type CompositeError struct {
	Message string
	Errs    []error
}

// NewCompositeError creates a CompositeError from the given child errors.
func NewCompositeError(message string, errs ...error) *CompositeError {
	return &CompositeError{Message: message, Errs: errs}
}

// Error implements the error interface.
func (e *CompositeError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("[%s] %s: %d errors: %s", KindComposite, e.Message, len(e.Errs), strings.Join(parts, "; "))
}

// Unwrap exposes the child errors to errors.Is / errors.As.
func (e *CompositeError) Unwrap() []error {
	return e.Errs
}

// Kinds returns the classification of every child error, in order.
func (e *CompositeError) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(e.Errs))
	for i, err := range e.Errs {
		kinds[i] = KindOf(err)
	}
	return kinds
}
