package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const bucketIdleEviction = 10 * time.Minute

// bucket is one IP's token-bucket state.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket, stdlib only — grounded on the
// teacher's RateLimiter (internal/api/ratelimit.go).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(perMinute) / 60.0,
		burst:   float64(burst),
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.burst}
		rl.buckets[ip] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens = min(b.tokens+elapsed*rl.rate, rl.burst)
	b.lastSeen = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1.0 - b.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := rl.take(c.ClientIP())
		if !ok {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "retryAfter": retryAfter.String()})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(bucketIdleEviction)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-bucketIdleEviction)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			b.mu.Lock()
			stale := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if stale {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
