package app

import (
	"context"
	"fmt"
	"time"

	"access-workflow/internal/common/logger"
)

// RetryWithBackoff runs operation up to maxRetries times, doubling the delay
// after each failure. It gives up early when ctx is done.
func RetryWithBackoff(
	ctx context.Context,
	operation func() error,
	maxRetries int,
	initialDelay time.Duration,
	log logger.Logger,
	operationName string,
) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, i+1, err)
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
