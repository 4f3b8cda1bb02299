// Package pace spaces out page loads with a fixed politeness delay.
package pace

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pacer sleeps for a constant delay between requests. The delay never
// grows.
type Pacer struct {
	clock clockwork.Clock
	delay time.Duration
}

// New returns a pacer on the given clock. A nil clock means real time.
func New(clock clockwork.Clock, delay time.Duration) *Pacer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pacer{clock: clock, delay: delay}
}

// Wait blocks for the delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(p.delay):
		return nil
	}
}
