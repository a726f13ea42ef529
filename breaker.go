package netguard

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a request outright.
var ErrCircuitOpen = errors.New("netguard: circuit open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker stops hammering the backend after repeated failures. It
// opens after failureThreshold consecutive failures and lets a single trial
// request through once resetTimeout has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failureThreshold int
	resetTimeout     time.Duration
	failures         int
	lastFailure      time.Time
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Allow returns nil when a request may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == breakerOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = breakerHalfOpen
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	cb.state = breakerClosed
	cb.mu.Unlock()
}

// RecordFailure counts a failure, opening the circuit at the threshold. A
// failed half-open trial re-opens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.failureThreshold || cb.state == breakerHalfOpen {
		cb.state = breakerOpen
	}
}
