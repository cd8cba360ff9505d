package util

import (
	"context"
	"math/rand"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay, plus up to 50% random jitter so concurrent callers do not retry
// in lockstep. It returns nil on the first successful call, the last error if
// all attempts fail, or the context error when cancelled mid-backoff.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			sleep := delay
			if half := delay / 2; half > 0 {
				sleep += time.Duration(rand.Int63n(int64(half)))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			delay *= 2
		}
	}

	return err
}
