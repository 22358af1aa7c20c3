// Package resilience guards calls to the hosted model endpoints with a
// circuit breaker and an outbound rate limiter.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// FailThreshold consecutive counted failures open the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before admitting probes.
	Timeout time.Duration
	// HalfOpenMax probes may be in flight while half-open.
	HalfOpenMax int
	// IsFailure decides which errors count toward FailThreshold. Errors it
	// rejects still reach the caller. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange runs after each transition, outside the breaker's lock.
	OnStateChange func(from, to State)
}

// DefaultBreakerOpts opens after 5 failures and probes again after 30s.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	opts BreakerOpts
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a closed Breaker. Zero options take their defaults.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the current state, moving open to half-open once the
// timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	from := b.state
	b.expire()
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return to
}

// Call runs f unless the breaker is open, and records its outcome.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err)
	return err
}

// expire must hold mu.
func (b *Breaker) expire() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state, b.probes = StateHalfOpen, 0
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	from := b.state
	b.expire()
	var err error
	switch {
	case b.state == StateOpen:
		err = ErrCircuitOpen
	case b.state == StateHalfOpen && b.probes >= b.opts.HalfOpenMax:
		err = ErrCircuitOpen
	case b.state == StateHalfOpen:
		b.probes++
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err == nil:
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failures = 0
	case b.opts.IsFailure == nil || b.opts.IsFailure(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state, b.failures, b.probes = StateOpen, 0, 0
			b.openedAt = b.now()
		}
	case b.state == StateHalfOpen && b.probes > 0:
		// an uncounted error hands its probe slot back
		b.probes--
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}
