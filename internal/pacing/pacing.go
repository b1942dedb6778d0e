// Package pacing provides injectable delay strategies used to space out
// requests to remote platforms.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer returns the delay to wait before the next action.
type Pacer interface {
	Delay() time.Duration
}

// Func adapts a plain function to the Pacer interface.
type Func func() time.Duration

// Delay calls f.
func (f Func) Delay() time.Duration { return f() }

// None never waits.
var None Pacer = Fixed(0)

// Fixed always returns the same delay.
type Fixed time.Duration

// Delay returns d.
func (d Fixed) Delay() time.Duration { return time.Duration(d) }

// Random returns a uniformly distributed delay in [Min, Max].
type Random struct {
	Min time.Duration
	Max time.Duration
}

// NewRandom creates a Random pacer. Bounds are swapped if given in the
// wrong order.
func NewRandom(min, max time.Duration) Random {
	if max < min {
		min, max = max, min
	}
	return Random{Min: min, Max: max}
}

// Delay returns a delay in [Min, Max].
func (r Random) Delay() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.N(r.Max-r.Min+1)
}

// Wait blocks for p's next delay or until ctx is done.
func Wait(ctx context.Context, p Pacer) error {
	if p == nil {
		return nil
	}
	d := p.Delay()
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
