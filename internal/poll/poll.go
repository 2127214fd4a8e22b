// Package poll provides a bounded fixed-interval polling combinator.
//
// The sleep is abstracted behind the Sleeper interface so callers can test
// polling loops without real time delays.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned when the polling deadline elapses before the
// condition reports done.
var ErrDeadline = errors.New("polling deadline exceeded")

// Sleeper waits for a duration, honoring context cancellation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// timerSleeper sleeps on a real timer.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Timer is the default real-time Sleeper.
var Timer Sleeper = timerSleeper{}

// Condition checks once whether polling is done. Returning an error stops
// the loop immediately; returning (false, nil) schedules another attempt.
type Condition func(ctx context.Context, attempt int) (done bool, err error)

// Until invokes fn at the fixed interval until it reports done, fails, the
// attempt budget (deadline / interval) is spent, or ctx is cancelled. The
// attempt budget rather than wall-clock time bounds the loop, so a deadline
// of 5m with a 5s interval allows exactly 60 status checks regardless of
// request latency.
func Until(ctx context.Context, s Sleeper, interval, deadline time.Duration, fn Condition) error {
	if s == nil {
		s = Timer
	}
	attempts := int(deadline / interval)
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := s.Sleep(ctx, interval); err != nil {
			return err
		}
	}
	return ErrDeadline
}
