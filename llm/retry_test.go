package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 60.0}
	for i, want := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := policy.Delay(i); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}

	policy.MaxDelay = 5.0
	if got := policy.Delay(10); got != 5*time.Second {
		t.Errorf("expected 5s cap, got %v", got)
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 60.0, Jitter: true}
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v out of bounds", got)
		}
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	var retried []int
	policy := RetryPolicy{MaxRetries: 3, BackoffMultiplier: 1, OnRetry: func(_ error, attempt int, _ time.Duration) {
		retried = append(retried, attempt)
	}}

	got, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &RateLimitError{}
		}
		return "done", nil
	})
	if err != nil || got != "done" {
		t.Fatalf("expected success, got %q, %v", got, err)
	}
	if calls != 3 || len(retried) != 2 {
		t.Errorf("expected 3 calls and 2 retries, got %d and %v", calls, retried)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxRetries: 5}, func(ctx context.Context) (int, error) {
		calls++
		return 0, &InvalidRequestError{}
	})
	var inv *InvalidRequestError
	if !errors.As(err, &inv) || calls != 1 {
		t.Errorf("expected one call returning InvalidRequestError, got %d calls, %v", calls, err)
	}
}

func TestRetryExhaustion(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxRetries: 2, BackoffMultiplier: 1}, func(ctx context.Context) (int, error) {
		calls++
		return 0, &ServerError{}
	})
	if err == nil || calls != 3 {
		t.Errorf("expected 3 calls then error, got %d calls, %v", calls, err)
	}
}

func TestRetryRespectsRetryAfterAboveMax(t *testing.T) {
	after := 120.0
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxRetries: 3, MaxDelay: 60}, func(ctx context.Context) (int, error) {
		calls++
		return 0, &RateLimitError{ProviderError: ProviderError{RetryAfter: &after}}
	})
	if err == nil || calls != 1 {
		t.Errorf("expected immediate failure, got %d calls", calls)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryPolicy{MaxRetries: 3, BaseDelay: 10, MaxDelay: 10, BackoffMultiplier: 1}, func(ctx context.Context) (int, error) {
		return 0, &ServerError{}
	})
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Errorf("expected AbortError, got %T", err)
	}
}
