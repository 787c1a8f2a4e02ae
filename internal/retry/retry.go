// Package retry runs an operation under a bounded-attempt, linear-backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/utils"
)

const (
	// DefaultMaxAttempts is used when no attempt count is configured.
	DefaultMaxAttempts = 3
	// MinAttempts and MaxAttempts bound any configured attempt count.
	MinAttempts = 1
	MaxAttempts = 5

	// BackoffStep is multiplied by the attempt number to get the delay before the next attempt.
	BackoffStep = 750 * time.Millisecond
	// MaxBackoff caps any single delay.
	MaxBackoff = 5 * time.Second
)

// Annotated is implemented by errors that record which attempt produced them
// and whether another attempt is worthwhile.
type Annotated interface {
	Annotate(attempt int, retryable bool)
}

// Classifier reports whether an error may succeed on another attempt.
type Classifier func(error) bool

// Policy describes how many times an operation is attempted.
type Policy struct {
	MaxAttempts int
	Classify    Classifier
	Logger      *zap.Logger

	// Wait blocks between attempts. Defaults to utils.WaitFor.
	Wait func(ctx context.Context, d time.Duration) error
}

// Attempt is the state handed to an operation for one try.
type Attempt struct {
	Number      int
	MaxAttempts int
}

// NewPolicy returns a policy with maxAttempts clamped to [MinAttempts, MaxAttempts].
// A non-positive value selects DefaultMaxAttempts.
func NewPolicy(maxAttempts int, classify Classifier, logger *zap.Logger) *Policy {
	return &Policy{
		MaxAttempts: ClampAttempts(maxAttempts),
		Classify:    classify,
		Logger:      logger,
	}
}

// ClampAttempts normalises a configured attempt count.
func ClampAttempts(n int) int {
	if n <= 0 {
		return DefaultMaxAttempts
	}
	return max(MinAttempts, min(MaxAttempts, n))
}

// Backoff returns the delay applied after a failed attempt, before the next one.
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return min(time.Duration(attempt)*BackoffStep, MaxBackoff)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts run out. The final error has its attempt recorded via Annotated and
// is marked non-retryable; errors that cannot be annotated are wrapped instead.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context, a Attempt) error) error {
	maxAttempts := ClampAttempts(p.MaxAttempts)
	wait := p.Wait
	if wait == nil {
		wait = utils.WaitFor
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx, Attempt{Number: attempt, MaxAttempts: maxAttempts})
		if lastErr == nil {
			return nil
		}

		retryable := p.Classify != nil && p.Classify(lastErr)
		if !retryable {
			annotate(lastErr, attempt, false)
			return lastErr
		}

		if attempt == maxAttempts {
			break
		}

		annotate(lastErr, attempt, true)
		delay := Backoff(attempt)
		logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		if err := wait(ctx, delay); err != nil {
			annotate(lastErr, attempt, false)
			return fmt.Errorf("waiting for retry: %w (last error: %v)", err, lastErr)
		}
	}

	if annotate(lastErr, maxAttempts, false) {
		return lastErr
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func annotate(err error, attempt int, retryable bool) bool {
	var a Annotated
	if !errors.As(err, &a) {
		return false
	}
	a.Annotate(attempt, retryable)
	return true
}
