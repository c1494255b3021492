package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times with exponential backoff, returning the
// first success or the last error. Only safe for idempotent operations;
// charges and creates must never go through here.
func Do[T any](ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			backoff := time.Duration(1<<(i-1)) * baseDelay
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
