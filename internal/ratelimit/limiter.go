// Package ratelimit throttles storefront requests per client key.
// The storefront keys login attempts by client IP so repeated password
// guesses are answered with 429 instead of reaching bcrypt.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Sustained requests per second per key
	Burst           int           // Burst size per key
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig allows short bursts of login attempts and a slow refill.
var DefaultConfig = Config{
	RPS:             1,
	Burst:           10,
	CleanupInterval: time.Hour,
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter manages one token bucket per key.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	config   Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup; call Stop to release it.
func NewRateLimiter(config Config) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request for key is within its limit.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// GetLimiter returns the limiter for key, creating one if necessary.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter
}

// Reset forgets every key. Test fixtures call it between tests.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters = make(map[string]*limiterEntry)
}

// Cleanup removes limiters idle for longer than the cleanup interval.
func (rl *RateLimiter) Cleanup() {
	rl.cleanupBefore(time.Now().Add(-rl.config.CleanupInterval))
}

func (rl *RateLimiter) cleanupBefore(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
// It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
	rl.wg.Wait()
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
