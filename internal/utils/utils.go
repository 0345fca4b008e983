package utils

import (
	"context"
	"time"
)

// WaitFor blocks for the given duration unless the context is cancelled
// first. Cancellation stops the underlying timer, so no sleeper outlives the
// call.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
