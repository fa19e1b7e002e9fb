package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Session errors
	ErrInvalidRequest  = fmt.Errorf("invalid session request")
	ErrBusy            = fmt.Errorf("maximum concurrent sessions reached")
	ErrSessionNotFound = fmt.Errorf("session not found")

	// Pipeline errors
	ErrTransient       = fmt.Errorf("transient failure")
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrBlocked         = fmt.Errorf("blocked by upstream")
	ErrNotFound        = fmt.Errorf("resource not found")
	ErrUpstream        = fmt.Errorf("upstream failure")
	ErrDataQuality     = fmt.Errorf("data quality violation")
	ErrCancelled       = fmt.Errorf("cancelled")
	ErrFatal           = fmt.Errorf("fatal pipeline failure")
	ErrBudgetExhausted = fmt.Errorf("cost budget exhausted")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrInvalidFlag  = fmt.Errorf("invalid flag value")
)

// ErrorKind maps an error chain to one of the closed set of kinds carried by
// progress events and session summaries: InvalidRequest, Busy, Transient,
// RateLimited, Blocked, NotFound, DataQuality, Cancelled, Fatal.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidFlag):
		return "InvalidRequest"
	case errors.Is(err, ErrBusy):
		return "Busy"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrBlocked):
		return "Blocked"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return "NotFound"
	case errors.Is(err, ErrDataQuality):
		return "DataQuality"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, ErrFatal):
		return "Fatal"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Transient"
	default:
		return "Transient"
	}
}

// Retryable reports whether an error kind may succeed on a later attempt.
// Timeouts, upstream failures, and rate limits retry; the rest do not.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUpstream) || errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}
