// Package wait replaces fixed sleeps with bounded condition polling.
package wait

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned when a condition does not hold before its bound elapses.
var ErrTimeout = errors.New("wait: condition not met before timeout")

// DefaultInterval is the polling interval used when a caller passes zero.
const DefaultInterval = 100 * time.Millisecond

// Condition reports whether the awaited state has been reached. A non-nil
// error aborts the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it returns
// true, returns an error, or timeout elapses. A zero or negative timeout
// means exactly one check. Expiry of the bound yields ErrTimeout;
// cancellation of the parent ctx yields the parent's error.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	// A zero bound still gets one look at the current state.
	checkCtx := waitCtx
	if timeout <= 0 {
		checkCtx = ctx
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()
	for first := true; ; first = false {
		if !first {
			if err := limiter.Wait(waitCtx); err != nil {
				return expiry(ctx, err)
			}
		}
		ok, err := cond(checkCtx)
		if err != nil {
			if checkCtx.Err() != nil && ctx.Err() == nil {
				// The condition's own call ran into our bound.
				return ErrTimeout
			}
			return err
		}
		if ok {
			return nil
		}
	}
}

// Value polls fetch until accept approves a result, returning the last
// value observed either way so callers can report what they saw on timeout.
func Value[T any](ctx context.Context, timeout, interval time.Duration, fetch func(context.Context) (T, error), accept func(T) bool) (T, error) {
	var last T
	err := Until(ctx, timeout, interval, func(c context.Context) (bool, error) {
		v, err := fetch(c)
		if err != nil {
			return false, err
		}
		last = v
		return accept(v), nil
	})
	return last, err
}

// Quiet blocks until pending reports no activity for a full quiet period, or
// timeout elapses. pending returns the number of outstanding operations.
func Quiet(ctx context.Context, timeout, quiet time.Duration, pending func() int) error {
	interval := quiet / 4
	if interval <= 0 {
		interval = DefaultInterval
	}
	lastActivity := time.Now()
	return Until(ctx, timeout, interval, func(context.Context) (bool, error) {
		if pending() > 0 {
			lastActivity = time.Now()
			return false, nil
		}
		return time.Since(lastActivity) >= quiet, nil
	})
}

func expiry(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	// rate.Limiter.Wait reports a would-exceed-deadline error before the
	// deadline actually passes; both mean the bound is spent.
	return ErrTimeout
}
