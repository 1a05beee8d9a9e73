package worker

import (
	"context"
	"errors"
	"time"
	"valorantsl/internal/domain"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy makes per-item retry behavior an explicit, testable value
// instead of a loop buried in the caller.
type RetryPolicy struct {
	MaxAttempts uint64
	Backoff     time.Duration
}

// Do runs f up to MaxAttempts times with a fixed backoff between attempts.
// Conflict errors are terminal: retrying a uniqueness violation cannot
// succeed.
func (p RetryPolicy) Do(ctx context.Context, f func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewConstant(p.Backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := f(ctx)
		if err == nil {
			return nil
		}
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
