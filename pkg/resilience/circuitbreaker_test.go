package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func callN(b *Breaker, outcomes ...error) {
	for _, out := range outcomes {
		_ = b.Call(context.Background(), func(context.Context) error { return out })
	}
}

func TestBreakerTransitions(t *testing.T) {
	cases := []struct {
		name     string
		calls    []error
		advance  time.Duration
		after    []error
		want     State
		wantCall error
	}{
		{"starts closed", nil, 0, nil, StateClosed, nil},
		{"trips at threshold", []error{errUpstream, errUpstream, errUpstream}, 0, nil, StateOpen, ErrCircuitOpen},
		{"success resets the count", []error{errUpstream, errUpstream, nil, errUpstream, errUpstream}, 0, nil, StateClosed, nil},
		{"half-open after timeout", []error{errUpstream, errUpstream, errUpstream}, 2 * time.Second, nil, StateHalfOpen, nil},
		{"probe success closes", []error{errUpstream, errUpstream, errUpstream}, 2 * time.Second, []error{nil}, StateClosed, nil},
		{"probe failure reopens", []error{errUpstream, errUpstream, errUpstream}, 2 * time.Second, []error{errUpstream}, StateOpen, ErrCircuitOpen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Now()
			b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
			b.now = func() time.Time { return now }

			callN(b, tc.calls...)
			now = now.Add(tc.advance)
			callN(b, tc.after...)
			if got := b.State(); got != tc.want {
				t.Fatalf("state = %v, want %v", got, tc.want)
			}
			if tc.wantCall != nil {
				called := false
				err := b.Call(context.Background(), func(context.Context) error { called = true; return nil })
				if !errors.Is(err, tc.wantCall) || called {
					t.Fatalf("expected %v without calling through, got %v", tc.wantCall, err)
				}
			}
		})
	}
}

func TestBreakerReportsTransitions(t *testing.T) {
	now := time.Now()
	var got []string
	b := NewBreaker(BreakerOpts{
		FailThreshold: 2,
		Timeout:       5 * time.Second,
		OnStateChange: func(from, to State) { got = append(got, from.String()+">"+to.String()) },
	})
	b.now = func() time.Time { return now }

	callN(b, errUpstream, errUpstream)
	now = now.Add(6 * time.Second)
	callN(b, nil)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
}

func TestBreakerHalfOpenProbeLimit(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second, HalfOpenMax: 1})
	b.now = func() time.Time { return now }
	callN(b, errUpstream)
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- b.Call(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	if err := b.Call(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second probe should be rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe, got %v", b.State())
	}
}

func TestBreakerIgnoresUncountedErrors(t *testing.T) {
	clientErr := errors.New("400 bad request")
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		IsFailure:     func(err error) bool { return !errors.Is(err, clientErr) },
	})
	for range 5 {
		if err := b.Call(context.Background(), func(context.Context) error { return clientErr }); !errors.Is(err, clientErr) {
			t.Fatalf("error should pass through, got %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("uncounted errors should not trip, got %v", b.State())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown", State(-1): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), want)
		}
	}
}
