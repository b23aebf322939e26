// Package retry runs an operation until it succeeds, backing off between attempts.
package retry

import (
	"context"
	"time"

	"github.com/bsv-blockchain/utxodump/ulogger"
)

type SetOptions struct {
	Message             string
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	RetryCount          int
	RetryIf             func(error) bool
}

type Options func(s *SetOptions)

func WithMessage(message string) Options {
	return func(s *SetOptions) {
		s.Message = message
	}
}

func WithBackoffMultiplier(backoffMultiplier int) Options {
	return func(s *SetOptions) {
		s.BackoffMultiplier = backoffMultiplier
	}
}

func WithBackoffDurationType(backoffDurationType time.Duration) Options {
	return func(s *SetOptions) {
		s.BackoffDurationType = backoffDurationType
	}
}

// WithRetryCount sets the total number of attempts.
func WithRetryCount(retryCount int) Options {
	return func(s *SetOptions) {
		s.RetryCount = retryCount
	}
}

// WithRetryIf limits retries to errors for which retryIf returns true. Any other
// error is returned straight away.
func WithRetryIf(retryIf func(error) bool) Options {
	return func(s *SetOptions) {
		s.RetryIf = retryIf
	}
}

// Retry calls f until it succeeds, the attempts are used up or ctx is done.
// The error of the last attempt is returned when all attempts fail; ctx.Err() is
// returned when the context ends the retries.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Options) (T, error) {
	setOptions := &SetOptions{
		BackoffMultiplier:   2,
		BackoffDurationType: time.Second,
		RetryCount:          3,
	}

	for _, opt := range opts {
		opt(setOptions)
	}

	var (
		result T
		err    error
	)

	for attempt := 0; attempt < setOptions.RetryCount; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if setOptions.RetryIf != nil && !setOptions.RetryIf(err) {
			return result, err
		}

		if attempt == setOptions.RetryCount-1 {
			break
		}

		if setOptions.Message != "" {
			logger.Warnf("%s (attempt %d): %v", setOptions.Message, attempt+1, err)
		} else {
			logger.Warnf("retrying after attempt %d failed: %v", attempt+1, err)
		}

		if sleepErr := BackoffAndSleep(ctx, attempt, setOptions.BackoffMultiplier, setOptions.BackoffDurationType); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
