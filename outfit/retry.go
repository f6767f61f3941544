package outfit

import (
	"context"
	"time"
)

// Backoff retries a failed call with exponential delays and no jitter.
type Backoff struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Sleep waits between attempts, SleepContext when nil.
	Sleep func(ctx context.Context, d time.Duration) error
	// ShouldRetry decides if an error is worth another attempt, Retryable when nil.
	ShouldRetry func(err error) bool
	OnRetry     func(retry int, delay time.Duration, err error)
}

func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries: 3,
		BaseDelay:  1000 * time.Millisecond,
		MaxDelay:   10000 * time.Millisecond,
	}
}

// Delay returns the wait before the given retry (1-based):
// min(BaseDelay * 2^(retry-1), MaxDelay).
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if retry > 30 {
		return b.MaxDelay
	}
	d := b.BaseDelay << (retry - 1)
	if d <= 0 || d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a terminal error or the retries
// run out. The last error is returned. attempt starts at 0.
func Retry[T any](ctx context.Context, b Backoff, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	sleep := b.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	shouldRetry := b.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = Retryable
	}
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if attempt >= b.MaxRetries || !shouldRetry(err) {
			return zero, err
		}
		delay := b.Delay(attempt + 1)
		if b.OnRetry != nil {
			b.OnRetry(attempt+1, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}
