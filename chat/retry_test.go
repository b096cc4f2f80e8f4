package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/whisperwall/chat"
)

func TestSendWithRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("first attempt succeeding sends once", func(t *testing.T) {
		t.Parallel()

		calls := 0

		err := chat.SendWithRetry(ctx, 3, time.Second, func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rate limit is retried until it clears", func(t *testing.T) {
		t.Parallel()

		calls := 0

		err := chat.SendWithRetry(ctx, 3, time.Second, func() error {
			calls++
			if calls < 3 {
				return chat.RetryAfterError{After: time.Millisecond}
			}

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		t.Parallel()

		calls := 0

		err := chat.SendWithRetry(ctx, 3, time.Second, func() error {
			calls++
			return chat.RetryAfterError{After: time.Millisecond}
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var retryErr chat.RetryAfterError
		assert.ErrorAs(t, err, &retryErr)
	})

	t.Run("non rate-limit errors fail immediately", func(t *testing.T) {
		t.Parallel()

		calls := 0
		sendErr := errors.New("chat not found")

		err := chat.SendWithRetry(ctx, 3, time.Second, func() error {
			calls++
			return sendErr
		})

		require.ErrorIs(t, err, sendErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("waits are capped by the ceiling", func(t *testing.T) {
		t.Parallel()

		calls := 0
		start := time.Now()

		err := chat.SendWithRetry(ctx, 2, time.Millisecond, func() error {
			calls++
			return chat.RetryAfterError{After: time.Hour}
		})

		require.Error(t, err)
		assert.Equal(t, 2, calls)
		assert.Less(t, time.Since(start), time.Second)
	})
}
