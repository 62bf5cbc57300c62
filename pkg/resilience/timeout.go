package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn with a context that expires after timeout. When the
// deadline (or ctx) ends first, WithTimeout returns an error wrapping
// context.DeadlineExceeded or ctx's error without waiting for fn. fn is
// left to finish in the background, and discard, if non-nil, is then
// called with fn's result so any partial work can be rolled back. A result
// that is ready when the deadline fires wins over the timeout.
//
// A non-positive timeout runs fn inline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error, discard func(error)) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		cancel()
		return err
	case <-timeoutCtx.Done():
	}
	select {
	case err := <-done:
		cancel()
		return err
	default:
	}

	go func() {
		err := <-done
		cancel()
		if discard != nil {
			discard(err)
		}
	}()
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	return fmt.Errorf("%s: %w (limit %v)", name, context.DeadlineExceeded, timeout)
}
