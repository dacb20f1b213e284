package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by Execute when no token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter in logs.
	Name string
	// Rate is the number of requests allowed per second.
	Rate float64
	// Burst is the maximum burst size.
	Burst int
	// OnLimit is called when a request is rate limited.
	OnLimit func(name string)
}

// RateLimiter implements a token bucket.
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = max(1, int(config.Rate))
	}
	return &RateLimiter{
		config:     config,
		now:        time.Now,
		tokens:     float64(config.Burst),
		lastRefill: time.Now(),
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	rl.refill()
	ok := rl.tokens >= 1
	if ok {
		rl.tokens--
	}
	rl.mu.Unlock()

	if !ok && rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.refill()
	rl.tokens--
	deficit := -rl.tokens
	rl.mu.Unlock()

	if deficit <= 0 {
		return nil
	}
	return Sleep(ctx, time.Duration(deficit/rl.config.Rate*float64(time.Second)))
}

// Execute runs fn if a token is available and returns ErrRateLimited otherwise.
func (rl *RateLimiter) Execute(fn func() error) error {
	if !rl.Allow() {
		return ErrRateLimited
	}
	return fn()
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Full reports whether the bucket has refilled to its burst size.
func (rl *RateLimiter) Full() bool {
	return rl.Tokens() >= float64(rl.config.Burst)
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// KeyedRateLimiter keeps one token bucket per key, e.g. per client IP.
// Buckets that have refilled completely are dropped by Prune.
type KeyedRateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*RateLimiter
}

// NewKeyedRateLimiter creates a per-key limiter; every key gets config.
func NewKeyedRateLimiter(config RateLimiterConfig) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		config:  config,
		buckets: make(map[string]*RateLimiter),
	}
}

// Allow reports whether a request for key may proceed now.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	rl, ok := k.buckets[key]
	if !ok {
		rl = NewRateLimiter(k.config)
		k.buckets[key] = rl
	}
	k.mu.Unlock()
	return rl.Allow()
}

// Prune removes buckets that are full again and returns how many remain.
func (k *KeyedRateLimiter) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, rl := range k.buckets {
		if rl.Full() {
			delete(k.buckets, key)
		}
	}
	return len(k.buckets)
}

// Len returns the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
