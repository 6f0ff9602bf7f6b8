package dispatch

import (
	"sync"
	"time"
)

const (
	// DefaultBreakerThreshold is the consecutive-failure count that
	// opens a breaker.
	DefaultBreakerThreshold = 5

	// DefaultBreakerCooldown is how long an open breaker rejects calls
	// before allowing a probe.
	DefaultBreakerCooldown = 30 * time.Second
)

// breakerState is the classic three-state breaker machine.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a per-target circuit breaker. After threshold consecutive
// failures it opens and rejects calls for the cooldown period; the
// first call after the cooldown runs as a half-open probe, and its
// result decides whether the breaker closes again or re-opens.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a breaker; non-positive arguments fall back to
// the defaults.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. While open it returns the
// remaining cooldown; when the cooldown has elapsed it admits a single
// probe by moving to half-open. Further calls are rejected until the
// in-flight probe reports its result via Record.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true, 0
	case breakerHalfOpen:
		if b.probing {
			return false, b.cooldown
		}
		b.probing = true
		return true, 0
	default:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed >= b.cooldown {
			b.state = breakerHalfOpen
			b.probing = true
			return true, 0
		}
		return false, b.cooldown - elapsed
	}
}

// Record feeds a call result into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if success {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.failures = 0
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker currently rejects calls. Unlike
// Allow it never admits a probe.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && b.now().Sub(b.openedAt) < b.cooldown
}
