package outpaint

import (
	"context"
	"time"

	"go.uber.org/zap"

	"multinpainter/generation"
	"multinpainter/logging"
)

// RetryConfig controls the per-region retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of generation calls per region,
	// including the first one.
	MaxAttempts int
	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// AttemptTimeout bounds each individual call. 0 disables the bound.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns the retry budget used when the job does not
// override it.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialDelay:   2 * time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 120 * time.Second,
	}
}

// retry runs fn until it succeeds, fails fatally, is cancelled, or the
// attempt budget runs out. The delay doubles after each transient failure
// up to MaxDelay. Returns the number of attempts made.
//
// Fatal errors abort immediately with the attempts spent so far; a context
// error passes through so callers can tell shutdown from failure.
func retry(ctx context.Context, cfg RetryConfig, log *logging.Logger, fn func(context.Context) error) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			// The parent was cancelled; the attempt error is just fallout.
			return attempt, ctx.Err()
		}
		if generation.IsFatal(err) {
			return attempt, err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn("generation attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return cfg.MaxAttempts, &exhaustedError{last: lastErr}
}

// exhaustedError wraps the final transient error once the budget is spent,
// keeping both ErrMaxAttemptsExceeded and the cause visible to errors.Is/As.
type exhaustedError struct {
	last error
}

func (e *exhaustedError) Error() string {
	return ErrMaxAttemptsExceeded.Error() + ": " + e.last.Error()
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrMaxAttemptsExceeded, e.last}
}
