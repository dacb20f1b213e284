package resilience

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// BackoffConfig configures a Backoff.
type BackoffConfig struct {
	// Initial is the delay returned before any failure and after the first.
	Initial time.Duration
	// Max caps the delay.
	Max time.Duration
	// Factor is the multiplier applied per consecutive failure.
	Factor float64
	// Jitter adds randomness to each delay (0.0 to 1.0).
	Jitter float64
}

// Backoff tracks consecutive failures and yields a growing delay. Unlike
// Retry it never gives up; callers decide when to stop.
type Backoff struct {
	cfg      BackoffConfig
	mu       sync.Mutex
	failures int
}

// NewBackoff creates a Backoff. Zero fields fall back to 1s initial, 60s max
// and factor 2.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = time.Second
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = 60 * time.Second
		if cfg.Max < cfg.Initial {
			cfg.Max = cfg.Initial
		}
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2.0
	}
	return &Backoff{cfg: cfg}
}

// Next records a failure and returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return calculateBackoff(b.failures, b.cfg.Initial, b.cfg.Max, b.cfg.Factor, b.cfg.Jitter)
}

// Reset clears the failure count.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failures returns the number of failures since the last Reset.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Initial returns the configured base delay.
func (b *Backoff) Initial() time.Duration { return b.cfg.Initial }

// calculateBackoff returns initial * factor^(attempt-1), jittered and capped.
func calculateBackoff(attempt int, initial, maxDelay time.Duration, factor, jitter float64) time.Duration {
	d := float64(initial) * math.Pow(factor, float64(attempt-1))

	if jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * jitter
	}
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	if d <= 0 {
		d = float64(initial)
	}
	return time.Duration(d)
}
