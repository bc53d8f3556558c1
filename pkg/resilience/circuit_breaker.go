package resilience

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	// CircuitClosed allows requests to pass through
	CircuitClosed CircuitBreakerState = "closed"
	// CircuitOpen blocks all requests
	CircuitOpen CircuitBreakerState = "open"
	// CircuitHalfOpen allows a trial request after the cool-down
	CircuitHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreaker stops page fetches against a rendering surface that keeps crashing
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitBreakerState

	failureThreshold  int
	openStateDuration time.Duration
	now               func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive failures
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &CircuitBreaker{
		state:             CircuitClosed,
		failureThreshold:  threshold,
		openStateDuration: cooldown,
		now:               time.Now,
	}
}

// WithClock replaces the breaker's time source
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
}

// RecordFailure records a failed operation. It returns an error when the breaker opens.
func (cb *CircuitBreaker) RecordFailure() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return fmt.Errorf("circuit breaker open - trial request failed")
	}

	if cb.failures >= cb.failureThreshold {
		cb.state = CircuitOpen
		return fmt.Errorf("circuit breaker open - failure threshold exceeded")
	}

	return nil
}

// CanExecute checks if an operation can be executed
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.openStateDuration {
			cb.state = CircuitHalfOpen
			return true
		}
	}
	return false
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
