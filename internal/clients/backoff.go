package clients

import (
	"context"
	"time"
)

// Backoff doubles from Initial up to Max per step and refuses to wait once
// the accumulated wait would pass MaxTotal. A zero MaxTotal means unbounded.
type Backoff struct {
	Initial  time.Duration
	Max      time.Duration
	MaxTotal time.Duration

	current time.Duration
	waited  time.Duration
}

func NewBackoff(initial, max, maxTotal time.Duration) *Backoff {
	if initial <= 0 {
		initial = INITIAL_BACKOFF
	}
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max, MaxTotal: maxTotal}
}

// Next returns the next delay. hint is a server supplied minimum (e.g. a
// rate-limit reset) and overrides the exponential step when larger. ok is
// false when the budget is spent.
func (b *Backoff) Next(hint time.Duration) (delay time.Duration, ok bool) {
	if b.current == 0 {
		b.current = b.Initial
	}
	delay = b.current
	if hint > delay {
		delay = hint
	}

	if b.MaxTotal > 0 {
		remaining := b.MaxTotal - b.waited
		if remaining <= 0 {
			return 0, false
		}
		if delay > remaining {
			delay = remaining
		}
	}

	b.waited += delay
	b.current *= 2
	if b.current > b.Max {
		b.current = b.Max
	}
	return delay, true
}

// Waited is the total delay handed out so far
func (b *Backoff) Waited() time.Duration {
	return b.waited
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
