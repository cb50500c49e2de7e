// Package retry decides whether a failed remote attempt is tried again and
// runs the bounded retry loop around a fetch.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/lexipath/lexisync/internal/model"
)

// Retry bounds of the background jobs.
const (
	PrefetchMaxAttempts = 3
	PrefetchBaseDelay   = time.Second
	PlanningMaxAttempts = 2
	PlanningBaseDelay   = 5 * time.Second
)

// Backoff returns the delay before the attempt that follows attempt n (n >= 1).
type Backoff func(attempt int) time.Duration

// Quadratic waits base * n².
func Quadratic(base time.Duration) Backoff {
	return func(n int) time.Duration {
		return base * time.Duration(n*n)
	}
}

// Linear waits base * n.
func Linear(base time.Duration) Backoff {
	return func(n int) time.Duration {
		return base * time.Duration(n)
	}
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	Name        string
	MaxAttempts int
	Backoff     Backoff
}

var (
	// Prefetch is used for content and profile fetches: 1s, 4s, then give up.
	Prefetch = Policy{Name: "prefetch", MaxAttempts: PrefetchMaxAttempts, Backoff: Quadratic(PrefetchBaseDelay)}
	// Planning is used for weekly plan generation: 5s, then give up.
	Planning = Policy{Name: "planning", MaxAttempts: PlanningMaxAttempts, Backoff: Linear(PlanningBaseDelay)}
	// Once never retries. Used for calls that are not idempotent.
	Once = Policy{Name: "once", MaxAttempts: 1}
)

// Decide reports whether attempt number attempt (starting at 1) which failed
// with kind should be followed by another one, and after how long.
func (p Policy) Decide(attempt int, kind model.Kind) Decision {
	if !kind.Retryable() {
		return Decision{}
	}
	if attempt >= p.MaxAttempts {
		return Decision{}
	}
	var delay time.Duration
	if p.Backoff != nil {
		delay = p.Backoff(attempt)
	}
	return Decision{Retry: true, Delay: delay}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, delay time.Duration)

type options struct {
	sleep  Sleeper
	notify Notify
}

// Option customizes Do.
type Option func(*options)

// WithSleeper replaces Sleep, typically with a recording fake in tests.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// WithNotify registers a callback run before each backoff sleep.
func WithNotify(n Notify) Option {
	return func(o *options) { o.notify = n }
}

// Do calls fn until it succeeds, fails with a terminal kind, or the policy is
// exhausted. It returns the value, the number of attempts made and the error.
//
// A terminal failure is returned unchanged. A transient failure on the last
// allowed attempt is returned as *model.ExhaustedError. When ctx ends during a
// backoff sleep the context error is joined with the last failure.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, int, error) {
	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, attempt, nil
		}
		kind := model.KindOf(err)
		d := p.Decide(attempt, kind)
		if !d.Retry {
			if kind.Retryable() {
				return zero, attempt, &model.ExhaustedError{Attempts: attempt, Last: err}
			}
			return zero, attempt, err
		}
		if o.notify != nil {
			o.notify(attempt, err, d.Delay)
		}
		if serr := o.sleep(ctx, d.Delay); serr != nil {
			return zero, attempt, errors.Join(serr, err)
		}
	}
}
