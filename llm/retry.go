package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff for model calls. Delays are
// expressed in seconds.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         float64
	MaxDelay          float64
	BackoffMultiplier float64
	Jitter            bool

	// OnRetry, when set, is told about each retry before the wait begins.
	OnRetry func(err error, attempt int, delay time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Delay returns the wait before retry attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	wait := p.BaseDelay * math.Pow(p.BackoffMultiplier, float64(attempt))
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	if p.Jitter {
		wait *= 0.5 + rand.Float64()
	}
	return seconds(wait)
}

// wait picks the delay for the given retry. ok is false when the backend
// asked for a longer pause than the policy allows.
func (p RetryPolicy) wait(err error, attempt int) (d time.Duration, ok bool) {
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter == nil {
		return p.Delay(attempt), true
	}
	d = seconds(*rl.RetryAfter)
	return d, d <= seconds(p.MaxDelay)
}

// Retry runs fn, retrying retryable failures according to policy.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay, ok := policy.wait(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-timer.C:
		}
	}
}
