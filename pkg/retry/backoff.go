// Package retry implements the exponential backoff used when establishing
// connections to external stores. Query paths never retry; only start-up
// connection attempts go through here.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the settings used for store connections: ten
// attempts over roughly five minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// WithBackoff runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. Delays double per attempt up to MaxDelay, with full
// jitter so replicas connecting simultaneously spread out.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		if lastErr = fn(); lastErr == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}

		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, lastErr)
		}

		sleep := time.Duration(rand.Int63n(int64(delay)) + 1)
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("retry_in", sleep),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(sleep):
		}

		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
