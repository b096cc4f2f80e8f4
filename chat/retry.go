package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultWaitCeiling = 30 * time.Second
)

// SendWithRetry runs send, honoring RetryAfterError with a bounded number
// of attempts and a hard ceiling on each wait. Any other error, or
// exhausting the attempts, fails the delivery.
func SendWithRetry(ctx context.Context, maxAttempts int, waitCeiling time.Duration, send func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if waitCeiling <= 0 {
		waitCeiling = DefaultWaitCeiling
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := send()
		if err == nil {
			return nil
		}

		var retryErr RetryAfterError
		if !errors.As(err, &retryErr) {
			return err
		}

		lastErr = err

		if attempt == maxAttempts {
			break
		}

		wait := min(retryErr.After, waitCeiling)

		select {
		case <-ctx.Done():
			return fmt.Errorf("delivery canceled while waiting to retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", maxAttempts, lastErr)
}
