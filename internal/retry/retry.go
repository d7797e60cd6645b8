// Package retry reruns optimistic transactions that lost a write conflict.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
)

// Policy bounds how often and how fast a conflicting transaction is retried.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // upper bound for any single delay
}

// DefaultPolicy allows five attempts, starting at 10ms and capped at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    200 * time.Millisecond,
	}
}

// Backoff returns the delay before attempt n+1, where n >= 1 is the number of
// attempts already made. It doubles from BaseDelay and stops at MaxDelay.
func (p Policy) Backoff(n int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do calls fn until it returns something other than a transaction conflict.
// It returns the number of attempts made. When every attempt conflicts the
// error wraps model.ErrConflict; when ctx ends first it wraps
// model.ErrUnavailable.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, repository.ErrTxConflict) {
			return attempt, timeoutAsUnavailable(err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if werr := wait(ctx, jitter(p.Backoff(attempt))); werr != nil {
			return attempt, errors.Join(model.ErrUnavailable, werr)
		}
	}
	return p.MaxAttempts, errors.Join(model.ErrConflict, err)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter spreads retries of colliding writers over [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half+1)
}

func timeoutAsUnavailable(err error) error {
	if err == nil || errors.Is(err, model.ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(model.ErrUnavailable, err)
	}
	return err
}
