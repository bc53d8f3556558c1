// Package resilience holds the retry, fan-out and breaker primitives shared
// by the research phases.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt failed and the fallback propagated
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// AttemptPolicy configures a bounded retry around a model call
type AttemptPolicy struct {
	// MaxAttempts includes the initial attempt
	MaxAttempts int
	// Delay is the fixed wait between attempts
	Delay time.Duration
	// Temperatures holds the sampling temperature per attempt; the last entry repeats
	Temperatures []float64
	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultAttemptPolicy returns three attempts, one second apart, at 0.3 then 0.1
func DefaultAttemptPolicy() AttemptPolicy {
	return AttemptPolicy{
		MaxAttempts:  3,
		Delay:        time.Second,
		Temperatures: []float64{0.3, 0.1, 0.1},
	}
}

// Attempt describes the current try
type Attempt struct {
	Number      int
	Temperature float64
}

// Temperature returns the sampling temperature for the 1-based attempt number
func (p AttemptPolicy) Temperature(attempt int) float64 {
	if len(p.Temperatures) == 0 {
		return 0.3
	}
	if attempt > len(p.Temperatures) {
		return p.Temperatures[len(p.Temperatures)-1]
	}
	return p.Temperatures[attempt-1]
}

// Run calls op until it succeeds or MaxAttempts is reached, then hands the
// last error to fallback. fallback decides whether the caller sees a default
// value or an error; it is required.
func Run[T any](ctx context.Context, p AttemptPolicy, op func(ctx context.Context, a Attempt) (T, error), fallback func(err error) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for n := 1; n <= p.MaxAttempts; n++ {
		v, err := op(ctx, Attempt{Number: n, Temperature: p.Temperature(n)})
		if err == nil {
			return v, nil
		}
		lastErr = err

		if n < p.MaxAttempts && p.Delay > 0 {
			if serr := sleep(ctx, p.Delay); serr != nil {
				lastErr = fmt.Errorf("%w: %v", serr, lastErr)
				break
			}
		}
	}

	return fallback(fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr))
}

// Propagate is a fallback that returns the zero value and the error
func Propagate[T any](err error) (T, error) {
	var zero T
	return zero, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
