package tmdb

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// gateMaxAttempts bounds how long a contended caller keeps retrying for
// a slot before the call is surfaced as an upstream failure.
const gateMaxAttempts = 8

// rateGate enforces the catalog call budget: at most one request per
// period across every caller sharing the client. A period of zero
// disables the gate.
type rateGate struct {
	mu     sync.Mutex
	period time.Duration
	last   time.Time
}

func newRateGate(period time.Duration) *rateGate {
	return &rateGate{period: period}
}

// wait blocks until the gate grants a slot, retrying with capped
// exponential backoff when other callers hold it.
func (g *rateGate) wait(ctx context.Context) error {
	if g.period <= 0 {
		return nil
	}

	delay := g.period / 2
	if delay < 10*time.Millisecond {
		delay = 10 * time.Millisecond
	}
	maxDelay := 4 * g.period

	for attempt := 0; attempt < gateMaxAttempts; attempt++ {
		if g.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return fmt.Errorf("%w: rate limit wait exhausted after %d attempts", ErrUpstream, gateMaxAttempts)
}

func (g *rateGate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Sub(g.last) >= g.period {
		g.last = now
		return true
	}
	return false
}
