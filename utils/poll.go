package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned when a condition never became true within the timeout
var ErrPollTimeout = errors.New("condition not met before timeout")

// PollUntil evaluates cond every interval until it returns true, returns an error,
// or timeout elapses. It replaces fixed sleeps while waiting for dynamic content.
func PollUntil(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w (%v)", ErrPollTimeout, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
