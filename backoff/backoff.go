// Package backoff computes wait times after consecutive store failures.
//
// The worker pool uses a Strategy to slow its dequeue loop while the
// invocation store is unreachable, so an outage does not turn every idle
// worker into a tight error loop. It never drives task retries; a failed
// invocation stays failed.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy maps a count of consecutive failures (starting at 1) to a wait.
type Strategy interface {
	Delay(failures int) time.Duration
}

// Constant waits the same Interval after every failure.
type Constant struct {
	Interval time.Duration
}

// Delay implements Strategy.
func (c Constant) Delay(int) time.Duration { return c.Interval }

// Exponential doubles the wait per failure, starting at Initial and
// capped at Max. With Jitter set, the wait is drawn uniformly from
// [0, computed wait] so workers sharing a store spread their reconnects.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// Delay implements Strategy.
func (e Exponential) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := float64(e.Initial) * math.Pow(2, float64(failures-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	if e.Jitter {
		d = rand.Float64() * d //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(d)
}

// Default returns jittered exponential backoff from initial up to 30s.
func Default(initial time.Duration) Strategy {
	return Exponential{Initial: initial, Max: 30 * time.Second, Jitter: true}
}
