package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"access-workflow/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "postgres ping")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return errors.New("connection refused")
		}, 3, time.Millisecond, log, "postgres ping")

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "postgres ping failed after 3 attempts")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return errors.New("unavailable")
		}, 10, time.Hour, log, "zeebe topology")

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Contains(t, err.Error(), "cancelled after 1 attempts")
	})
}
