package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Microsecond, MaxDelay: 10 * time.Microsecond}
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	calls := 0
	n, err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesConflictsUntilSuccess(t *testing.T) {
	calls := 0
	n, err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("commit: %w", repository.ErrTxConflict)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDo_ExhaustedReturnsConflict(t *testing.T) {
	calls := 0
	n, err := Do(context.Background(), fastPolicy(4), func(context.Context) error {
		calls++
		return repository.ErrTxConflict
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, calls)
}

func TestDo_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return model.ErrEventFull
	})
	assert.ErrorIs(t, err, model.ErrEventFull)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	_, err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return repository.ErrTxConflict
	})
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestDo_DeadlineSurfacesAsUnavailable(t *testing.T) {
	_, err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		return fmt.Errorf("read event: %w", context.DeadlineExceeded)
	})
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond},
		{9, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.n), "Backoff(%d)", tt.n)
	}
}

func TestJitter_StaysInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}
