package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LimiterOpts configures the outbound token bucket.
type LimiterOpts struct {
	// Rate is tokens per second. Zero or less disables limiting.
	Rate  float64
	Burst int
}

// Limiter throttles calls to the model endpoints. Embedding and generation
// share one Limiter so together they stay under the account quota.
type Limiter struct {
	lim *rate.Limiter
	now func() time.Time
}

// NewLimiter creates a Limiter. Burst defaults to 1.
func NewLimiter(opts LimiterOpts) *Limiter {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Limiter{lim: rate.NewLimiter(limit, max(opts.Burst, 1)), now: time.Now}
}

// Allow takes a token if one is available right now.
func (l *Limiter) Allow() bool {
	return l.lim.AllowN(l.now(), 1)
}

// Wait blocks until a token is available. It fails fast when ctx's deadline
// would pass before the token arrives.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}
