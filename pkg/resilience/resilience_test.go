package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRun_RetriesWithLowerTemperature(t *testing.T) {
	policy := DefaultAttemptPolicy()
	policy.Sleep = noSleep

	var temps []float64
	v, err := Run(context.Background(), policy, func(_ context.Context, a Attempt) (string, error) {
		temps = append(temps, a.Temperature)
		if a.Number < 3 {
			return "", errors.New("malformed")
		}
		return "ok", nil
	}, Propagate[string])

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, []float64{0.3, 0.1, 0.1}, temps)
}

func TestRun_FallbackAfterExhaustion(t *testing.T) {
	policy := DefaultAttemptPolicy()
	policy.Sleep = noSleep

	calls := 0
	cause := errors.New("model down")
	v, err := Run(context.Background(), policy, func(context.Context, Attempt) ([]string, error) {
		calls++
		return nil, cause
	}, func(err error) ([]string, error) {
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
		assert.ErrorIs(t, err, cause)
		return []string{"default"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, v)
	assert.Equal(t, 3, calls)
}

func TestRun_PropagateReturnsError(t *testing.T) {
	policy := AttemptPolicy{MaxAttempts: 2, Sleep: noSleep}

	_, err := Run(context.Background(), policy, func(context.Context, Attempt) (int, error) {
		return 0, errors.New("boom")
	}, Propagate[int])

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestRunBatches_KeepsSuccessesInOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	var running, peak atomic.Int32

	out, failures := RunBatches(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		if n%3 == 0 {
			return 0, errors.New("failed")
		}
		return n * 10, nil
	})

	assert.Equal(t, []int{10, 20, 40, 50, 70}, out)
	require.Len(t, failures, 2)
	assert.Equal(t, 2, failures[0].Index)
	assert.Equal(t, 5, failures[1].Index)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestWithTimeout(t *testing.T) {
	errSlow := errors.New("too slow")

	_, err := WithTimeout(context.Background(), 10*time.Millisecond, errSlow, func(ctx context.Context) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})
	assert.ErrorIs(t, err, errSlow)

	v, err := WithTimeout(context.Background(), time.Second, errSlow, func(ctx context.Context) (string, error) {
		return "fast", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func recoverPanic(fn func()) (recovered any) {
	defer func() { recovered = recover() }()
	fn()
	return nil
}

func TestRunBatches_ReraisesItemPanicOnCaller(t *testing.T) {
	var completed atomic.Int32

	recovered := recoverPanic(func() {
		RunBatches(context.Background(), []int{1, 2, 3, 4}, 3, func(_ context.Context, n int) (int, error) {
			if n == 2 {
				panic("evaluator exploded")
			}
			completed.Add(1)
			return n, nil
		})
	})

	p, ok := recovered.(ItemPanic)
	require.True(t, ok, "recovered %T", recovered)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "evaluator exploded", p.Value)
	assert.NotEmpty(t, p.Stack)
	assert.Contains(t, p.Error(), "item 1 panicked: evaluator exploded")
	// Batch-mates finish; later batches never start.
	assert.Equal(t, int32(2), completed.Load())
}

func TestWithTimeout_ReraisesPanicOnCaller(t *testing.T) {
	recovered := recoverPanic(func() {
		_, _ = WithTimeout(context.Background(), time.Second, errors.New("slow"), func(context.Context) (string, error) {
			panic("fetch exploded")
		})
	})

	p, ok := recovered.(ItemPanic)
	require.True(t, ok, "recovered %T", recovered)
	assert.Equal(t, "fetch exploded", p.Value)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(3, time.Minute).WithClock(func() time.Time { return now })

	assert.True(t, cb.CanExecute())
	assert.NoError(t, cb.RecordFailure())
	assert.NoError(t, cb.RecordFailure())
	assert.Error(t, cb.RecordFailure())
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.False(t, cb.CanExecute())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.True(t, cb.CanExecute())
}
