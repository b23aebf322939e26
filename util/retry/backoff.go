package retry

import (
	"context"
	"time"
)

// replaced in tests
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffAndSleep sleeps for (backoffMultiplier*retries)+1 units of durationType,
// returning early with the context error if ctx is done first.
func BackoffAndSleep(ctx context.Context, retries int, backoffMultiplier int, durationType time.Duration) error {
	backoff := (backoffMultiplier * retries) + 1
	backoffPeriod := time.Duration(backoff) * durationType

	return sleepFunc(ctx, backoffPeriod)
}
