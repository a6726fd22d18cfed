package github

import "errors"

// Error types for classifying GitHub API failures.

// TransientError represents a temporary failure that may succeed on retry,
// such as a rate limit or a 5xx from the Actions API.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// DispatchError represents a failed workflow-dispatch call. It carries the
// raw response body so callers can surface the upstream diagnostic.
type DispatchError struct {
	StatusCode int
	Detail     string
}

func (e *DispatchError) Error() string {
	return "github dispatch failed"
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
