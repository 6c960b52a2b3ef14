package ratelimit

import (
	"sync"
	"time"

	"github.com/coursematch/coursematch-web/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "client")
	Name string

	// Token bucket settings
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// How often idle buckets are dropped. Zero disables cleanup.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket per key (a client IP) and drops the
// buckets of idle keys.
type KeyedLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	config   KeyedConfig
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter creates a new per-key rate limiter.
//
// Example:
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "client",
//	    Burst:         20,
//	    RefillRate:    2,
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
//
//	if ok, _ := limiter.Allow(clientIP); ok {
//	    // Process request
//	}
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*Limiter),
		config:   cfg,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}

	return kl
}

// Allow checks if a request for the given key is allowed.
// An empty key is never limited. A rejected request also returns the time
// until the key's next token.
func (kl *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	if key == "" {
		return true, 0
	}

	ok, retryAfter := kl.getOrCreate(key).Allow()
	if !ok && kl.config.Metrics != nil {
		kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
	}
	return ok, retryAfter
}

func (kl *KeyedLimiter) getOrCreate(key string) *Limiter {
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if exists {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = kl.limiters[key]; exists {
		return limiter
	}

	limiter = newWithClock(kl.config.Burst, kl.config.RefillRate, kl.now)
	kl.limiters[key] = limiter
	return limiter
}

// GetAvailable returns the number of available tokens for a key.
// Returns Burst if the key has no limiter yet.
func (kl *KeyedLimiter) GetAvailable(key string) float64 {
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if !exists {
		return kl.config.Burst
	}
	return limiter.Available()
}

// GetActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) GetActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.limiters)
}

// Cleanup drops the buckets that have refilled completely and returns how
// many keys remain.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, limiter := range kl.limiters {
		if limiter.IsFull() {
			delete(kl.limiters, key)
		}
	}
	return len(kl.limiters)
}

// cleanupLoop periodically removes inactive limiters.
func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop gracefully stops the cleanup goroutine.
// Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}
