// Package consistency waits for writes to an eventually consistent store to
// become observable.
package consistency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxWait  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

var errNotObserved = errors.New("expected state not observed yet")

// Check reports whether the expected post-write state is visible.
type Check func(ctx context.Context) (bool, error)

// Result describes the outcome of an Await call.
type Result struct {
	Satisfied bool
	Attempts  int
	Waited    time.Duration
	// LastErr is the last error returned by the check, if any.
	LastErr error
}

// Poller re-runs a Check at a fixed interval until it holds or MaxWait has
// been spent sleeping.
type Poller struct {
	maxWait  time.Duration
	interval time.Duration
	timer    func() backoff.Timer
}

// Option customises a Poller.
type Option func(*Poller)

// WithTimer replaces the wall clock timer, mainly so tests can simulate
// elapsed time without sleeping.
func WithTimer(factory func() backoff.Timer) Option {
	return func(p *Poller) {
		p.timer = factory
	}
}

// NewPoller builds a poller. Non-positive values fall back to the defaults.
func NewPoller(maxWait, interval time.Duration, opts ...Option) *Poller {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval > maxWait {
		interval = maxWait
	}
	p := &Poller{maxWait: maxWait, interval: interval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxWait is the total sleep budget of a single Await.
func (p *Poller) MaxWait() time.Duration { return p.maxWait }

// Interval is the fixed pause between two checks.
func (p *Poller) Interval() time.Duration { return p.interval }

// Await checks once immediately and then after every interval, never
// sleeping longer than MaxWait in total. Failing to observe the state is
// reported through Result, not as an error. Check errors count as "not yet
// observed".
//
// Checks run on a context that keeps ctx's values but not its cancellation,
// so a caller that goes away mid-wait still gets an accurate outcome.
func (p *Poller) Await(ctx context.Context, check Check) Result {
	checkCtx := context.WithoutCancel(ctx)
	var res Result
	op := func() error {
		res.Attempts++
		ok, err := check(checkCtx)
		if err != nil {
			res.LastErr = err
			return err
		}
		if !ok {
			return errNotObserved
		}
		res.Satisfied = true
		return nil
	}
	notify := func(_ error, next time.Duration) {
		res.Waited += next
	}

	retries := uint64(p.maxWait / p.interval)
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), retries)

	var timer backoff.Timer
	if p.timer != nil {
		timer = p.timer()
	}
	_ = backoff.RetryNotifyWithTimer(op, policy, notify, timer)
	return res
}
