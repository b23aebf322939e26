// Package errors provides coded errors and utilities for categorizing them.
package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the operation should be retried.
// This includes network timeouts, temporary unavailability, and other transient conditions.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check if context was cancelled - not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_NETWORK_TIMEOUT,
			ERR_NETWORK_ERROR,
			ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		case ERR_NETWORK_CONNECTION_REFUSED:
			// the store might still be starting up
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if err == context.Canceled || err == context.DeadlineExceeded {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		if tErr.Code() == ERR_CONTEXT_CANCELED || tErr.Code() == ERR_CONTEXT {
			return true
		}
	}

	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
