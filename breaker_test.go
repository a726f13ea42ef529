package netguard

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if err := cb.Allow(); err != nil {
			t.Fatalf("breaker opened before threshold")
		}
	}
	cb.RecordFailure()
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenAndRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	if err := cb.Allow(); err == nil {
		t.Fatalf("expected open circuit")
	}
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open trial to be allowed, got %v", err)
	}
	cb.RecordSuccess()
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected closed circuit after success, got %v", err)
	}
}

func TestCircuitBreakerReopensOnFailedTrial(t *testing.T) {
	cb := NewCircuitBreaker(5, 10*time.Millisecond)
	cb.RecordFailure()
	cb.mu.Lock()
	cb.state = breakerOpen
	cb.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open trial")
	}
	cb.RecordFailure()
	if err := cb.Allow(); err == nil {
		t.Fatalf("expected reopened circuit after failed trial")
	}
}
