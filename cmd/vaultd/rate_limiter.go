// rate_limiter.go - Rate limiting for the vault daemon
package main

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens int, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refillCount := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if refillCount > 0 {
		rl.tokens += refillCount * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// IdentityRateLimiter manages rate limiting per identity hash. Proof
// verification is the daemon's expensive step, so limits are scoped to the
// identity being authorized rather than to the transport peer.
type IdentityRateLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*RateLimiter
	maxTokens    int
	refillRate   int
	refillPeriod time.Duration
}

// NewIdentityRateLimiter creates a new per-identity rate limiter
func NewIdentityRateLimiter(maxTokens int, refillRate int, refillPeriod time.Duration) *IdentityRateLimiter {
	return &IdentityRateLimiter{
		limiters:     make(map[string]*RateLimiter),
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request for an identity hash is allowed
func (irl *IdentityRateLimiter) Allow(usernameHash string) bool {
	irl.mu.Lock()
	limiter, exists := irl.limiters[usernameHash]
	if !exists {
		limiter = NewRateLimiter(irl.maxTokens, irl.refillRate, irl.refillPeriod)
		irl.limiters[usernameHash] = limiter
	}
	irl.mu.Unlock()

	return limiter.Allow()
}
