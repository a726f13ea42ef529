package netguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryBound(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, newTransientError("http://x", 500, nil)
	}
	_, err := WithRetry(context.Background(), op, RetryOptions{Count: 2, Delay: 0})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 invocations (initial + 2 retries), got %d", calls)
	}
}

func TestWithRetrySucceedsMidway(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, newTransientError("http://x", 503, nil)
		}
		return []byte("ok"), nil
	}
	got, err := WithRetry(context.Background(), op, RetryOptions{Count: 5, Delay: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, newBlockedError("http://x", "untrusted")
	}
	_, err := WithRetry(context.Background(), op, RetryOptions{Count: 5, Delay: 0})
	if err == nil || calls != 1 {
		t.Fatalf("expected single invocation for non-retryable error, got %d (err %v)", calls, err)
	}
	if KindOf(err) != KindBlocked {
		t.Fatalf("expected blocked kind, got %s", KindOf(err))
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		cancel()
		return nil, newTransientError("http://x", 500, nil)
	}
	_, err := WithRetry(ctx, op, RetryOptions{Count: 5, Delay: time.Hour})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected loop to stop after cancellation, got %d calls", calls)
	}
}

func TestWithRetryReportsAttempts(t *testing.T) {
	var attempts []int
	op := func(ctx context.Context) ([]byte, error) {
		return nil, newTransientError("http://x", 500, nil)
	}
	_, _ = WithRetry(context.Background(), op, RetryOptions{
		Count: 3,
		Delay: 0,
		OnRetry: func(attempt int, err error) {
			attempts = append(attempts, attempt)
			if err == nil {
				t.Fatalf("OnRetry should carry the triggering error")
			}
		},
	})
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Fatalf("unexpected attempt sequence: %v", attempts)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		opts     RetryOptions
		attempt  int
		expected time.Duration
	}{
		{RetryOptions{Delay: time.Second}, 3, time.Second},
		{RetryOptions{Delay: time.Second, UseBackoff: true}, 1, time.Second},
		{RetryOptions{Delay: time.Second, UseBackoff: true}, 2, 2 * time.Second},
		{RetryOptions{Delay: time.Second, UseBackoff: true}, 4, 8 * time.Second},
		{RetryOptions{Delay: time.Second, UseBackoff: true, MaxDelay: 3 * time.Second}, 4, 3 * time.Second},
		{RetryOptions{Delay: 0, UseBackoff: true}, 4, 0},
	}
	for i, tc := range tests {
		if got := backoffDelay(tc.opts, tc.attempt); got != tc.expected {
			t.Fatalf("case %d: expected %s, got %s", i, tc.expected, got)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	if KindOf(errors.New("plain")) != KindOther {
		t.Fatalf("plain errors classify as other")
	}
	if KindOf(newRedirectError("a", "b", nil)) != KindRedirect {
		t.Fatalf("redirect kind lost")
	}
	wrapped := &Error{Kind: KindTimeout, Message: "m", Err: errors.New("inner")}
	if KindOf(wrapped) != KindTimeout {
		t.Fatalf("timeout kind lost")
	}
	if !retryable(newTransientError("u", 500, nil)) || !retryable(wrapped) {
		t.Fatalf("transient and timeout must be retryable")
	}
	if retryable(newBlockedError("u", "r")) || retryable(newRedirectError("a", "b", nil)) {
		t.Fatalf("blocked and redirect must not be retryable")
	}
	if !redirectClass(newHTMLResponseError("u", 200)) {
		t.Fatalf("html responses belong to the redirect class")
	}
}
