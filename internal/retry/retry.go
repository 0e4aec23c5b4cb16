package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRetriesExhausted is returned once every attempt allowed by a Config has failed
// with a retryable error.
var ErrRetriesExhausted = errors.New("retries exhausted")

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	Jitter     bool
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy composes a backoff Config with the predicate that decides which errors are
// transient. A nil Retryable treats every error as transient.
type Policy struct {
	Config    Config
	Retryable Classifier
	Sleep     Sleeper
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func NewPolicy(config Config, retryable Classifier) *Policy {
	return &Policy{Config: config, Retryable: retryable}
}

// WithRetry runs operation under config, retrying every error.
func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	return Run(ctx, &Policy{Config: config}, operation)
}

// Run executes operation until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. Attempts are MaxRetries+1 in total and there is no
// sleep after the final failure.
func Run[T any](ctx context.Context, policy *Policy, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	config := policy.Config
	sleep := policy.Sleep
	if sleep == nil {
		sleep = contextSleep
	}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := runOnce(ctx, config.Timeout, operation)
		if err == nil {
			return result, nil
		}

		if policy.Retryable != nil && !policy.Retryable(err) {
			log.Debug().
				Err(err).
				Int("attempt", attempt+1).
				Msg("Operation failed with non-retryable error")
			return zero, err
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Msg("Operation failed")

		if attempt < config.MaxRetries {
			delay := calculateBackoffDelay(attempt, config.BaseDelay, config.MaxDelay, config.Jitter)
			log.Debug().
				Dur("delay", delay).
				Int("next_attempt", attempt+2).
				Msg("Retrying after delay")

			if policy.OnRetry != nil {
				policy.OnRetry(attempt+1, delay, err)
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			continue
		}
		return zero, fmt.Errorf("%w: operation failed after %d attempts: %w", ErrRetriesExhausted, config.MaxRetries+1, err)
	}
	return zero, fmt.Errorf("unexpected: exceeded retry loop")
}

func runOnce[T any](ctx context.Context, timeout time.Duration, operation func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return operation(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(opCtx)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func calculateBackoffDelay(attempt int, baseDelay, maxDelay time.Duration, jitter bool) time.Duration {
	// Cap attempt at 30 to prevent overflow (2^30 is safe for int)
	safeAttempt := min(attempt, 30)
	multiplier := 1 << safeAttempt
	delay := time.Duration(multiplier) * baseDelay

	if delay > maxDelay || delay < 0 {
		delay = maxDelay
	}
	if !jitter {
		return delay
	}

	// random between 0.5x and 1.5x
	delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
