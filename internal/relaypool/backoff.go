package relaypool

import (
	"math/rand"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
)

// backoff computes the exponential, jittered reconnect delay described in
// spec.md §4.2: double the previous delay each failed attempt, cap at
// BackoffMaxMs, and jitter by ±BackoffJitterPct so successive reconnect
// delays are not exact multiples of each other.
type backoff struct {
	policy  config.RelayPolicy
	current time.Duration
}

func newBackoff(policy config.RelayPolicy) *backoff {
	return &backoff{policy: policy, current: time.Duration(policy.BackoffMinMs) * time.Millisecond}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances the internal state for the attempt after that.
func (b *backoff) Next() time.Duration {
	delay := b.current
	b.current *= 2
	max := time.Duration(b.policy.BackoffMaxMs) * time.Millisecond
	if b.current > max {
		b.current = max
	}
	return jitter(delay, b.policy.BackoffJitterPct)
}

// Reset restores the backoff to its initial delay, called after a
// successful connection.
func (b *backoff) Reset() {
	b.current = time.Duration(b.policy.BackoffMinMs) * time.Millisecond
}

func jitter(d time.Duration, pct int) time.Duration {
	if pct <= 0 {
		return d
	}
	spread := float64(d) * float64(pct) / 100.0
	offset := (rand.Float64()*2 - 1) * spread
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		return 0
	}
	return result
}
