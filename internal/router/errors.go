package router

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoProviders is returned by Call when no enabled provider is configured.
var ErrNoProviders = errors.New("no providers configured")

// ErrCancelled matches any *CancelledError via errors.Is.
var ErrCancelled = errors.New("call cancelled")

// ErrorClass classifies provider errors for logs and metrics.
type ErrorClass string

const (
	ErrContextOverflow ErrorClass = "context_overflow"
	ErrRateLimited     ErrorClass = "rate_limited"
	ErrTransient       ErrorClass = "transient"
	ErrFatal           ErrorClass = "fatal"
	ErrTimeout         ErrorClass = "timeout"
)

// ClassifiedError wraps an error with its class. Clients return it so the
// engine can label a failed attempt without knowing the transport.
type ClassifiedError struct {
	Err        error
	Class      ErrorClass
	RetryAfter int
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// ProviderError records the failure of a single attempt.
type ProviderError struct {
	ProviderID ProviderKind
	Model      string
	Attempt    int
	Class      ErrorClass
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s) attempt %d: %v", e.ProviderID, e.Model, e.Attempt, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError is returned when every attempt failed.
type AllProvidersFailedError struct {
	Attempts int
	Last     *ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all providers failed after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("all providers failed after %d attempts. last error: %v", e.Attempts, e.Last)
}

func (e *AllProvidersFailedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// CancelledError is returned when the caller's context ended the call.
type CancelledError struct {
	Attempts int
	Err      error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("call cancelled after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// classify picks the class of an attempt error.
func classify(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrFatal
}
