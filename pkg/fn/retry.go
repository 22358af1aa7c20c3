package fn

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var errNilErr = errors.New("fn: failed result without error")

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is three attempts with jittered exponential backoff from 500ms.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Jitter:      true,
}

// backoff returns the wait before attempt n+1 (n counts from 1).
func (o RetryOpts) backoff(n int) time.Duration {
	wait := o.InitialWait << min(n-1, 30)
	if wait < o.InitialWait || (o.MaxWait > 0 && wait > o.MaxWait) {
		wait = o.MaxWait
	}
	if o.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		if o.MaxWait > 0 && wait > o.MaxWait {
			wait = o.MaxWait
		}
	}
	return wait
}

// Retry calls f until it succeeds, the error is not retryable, MaxAttempts
// is reached, or ctx is done. It returns the last result, or ctx's error
// when ctx ends a backoff sleep.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	for n := 1; ; n++ {
		res := f(ctx)
		if res.IsOk() || n >= attempts {
			return res
		}
		if opts.Retryable != nil && !opts.Retryable(res.err) {
			return res
		}

		wait := opts.backoff(n)
		if opts.OnRetry != nil {
			opts.OnRetry(n, res.err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
}
