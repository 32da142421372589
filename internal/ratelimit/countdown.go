package ratelimit

import (
	"context"
	"time"
)

// Countdown sleeps for the given duration, invoking onTick immediately with
// the full count and then once per second with the seconds remaining, down
// to 0. A non-positive duration returns at once without calling onTick.
// Cancellation via ctx terminates the wait promptly, returning ctx.Err().
func Countdown(ctx context.Context, seconds int, onTick func(remaining int)) error {
	if seconds <= 0 {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seconds
	if onTick != nil {
		onTick(remaining)
	}
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining--
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
	return nil
}
