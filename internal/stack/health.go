package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// CheckFunc probes the application once.
type CheckFunc func(ctx context.Context) error

// WaitHealthy polls check every interval until it succeeds, ctx ends or
// timeout elapses. The last probe error is returned on timeout.
func WaitHealthy(ctx context.Context, check CheckFunc, timeout, interval time.Duration, notify func(attempt int, err error)) error {
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := check(ctx); err != nil {
			lastErr = err
			if notify != nil {
				notify(attempt, err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("application not healthy after %s (%d probes): %w", timeout, attempt, lastErr)
	}
	return fmt.Errorf("application not healthy after %s: %w", timeout, err)
}
