package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// ItemError ties a failure to the input index that produced it
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// ItemPanic carries a panic raised by an item function back to the caller's
// goroutine, where it is re-raised.
type ItemPanic struct {
	Index int
	Value any
	Stack []byte
}

func (p ItemPanic) Error() string {
	return fmt.Sprintf("item %d panicked: %v", p.Index, p.Value)
}

// RunBatches processes items in consecutive batches of size, running each
// batch concurrently and waiting for all of it before starting the next.
// A failed item never cancels its batch-mates. Successes are returned in
// input order. A panicking item lets its batch finish and is then re-raised
// on the caller's goroutine as an ItemPanic.
func RunBatches[In, Out any](ctx context.Context, items []In, size int, fn func(ctx context.Context, item In) (Out, error)) ([]Out, []ItemError) {
	if size <= 0 {
		size = 1
	}

	values := make([]Out, len(items))
	errs := make([]error, len(items))
	panics := make([]*ItemPanic, len(items))

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						panics[i] = &ItemPanic{Index: i, Value: r, Stack: debug.Stack()}
					}
				}()
				values[i], errs[i] = fn(ctx, items[i])
				return nil
			})
		}
		_ = g.Wait()

		for _, p := range panics[start:end] {
			if p != nil {
				panic(*p)
			}
		}
	}

	out := make([]Out, 0, len(items))
	var failures []ItemError
	for i := range items {
		if errs[i] != nil {
			failures = append(failures, ItemError{Index: i, Err: errs[i]})
			continue
		}
		out = append(out, values[i])
	}
	return out, failures
}

// WithTimeout races fn against d. When d elapses first the timeout error is
// returned and fn's eventual result is discarded. A panic in fn before the
// deadline is re-raised on the caller's goroutine.
func WithTimeout[T any](ctx context.Context, d time.Duration, timeoutErr error, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v     T
		err   error
		panic *ItemPanic
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{panic: &ItemPanic{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.panic != nil {
			panic(*r.panic)
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s", timeoutErr, d)
	}
}
