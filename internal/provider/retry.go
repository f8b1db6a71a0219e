package provider

import (
	"context"
	"time"

	"conductor/pkg/logger"
)

type retrying struct {
	Backend
	attempts int
	delay    time.Duration
}

// WithRetry retries retryable failures of b up to attempts extra times,
// doubling delay between tries. Cancellation of ctx stops the loop.
func WithRetry(b Backend, attempts int, delay time.Duration) Backend {
	if attempts <= 0 {
		return b
	}
	return &retrying{Backend: b, attempts: attempts, delay: delay}
}

func (r *retrying) SendPrompt(ctx context.Context, prompt string) (Reply, error) {
	wait := r.delay
	var lastErr error
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			logger.Debug().
				Str("backend", r.Name()).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying model request")
			select {
			case <-ctx.Done():
				return Reply{}, lastErr
			case <-time.After(wait):
			}
			wait *= 2
		}

		reply, err := r.Backend.SendPrompt(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return Reply{}, err
		}
	}
	return Reply{}, lastErr
}
