package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig - token bucket parameters. A client that exhausts its
// bucket is refused for BlockDuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	BlockDuration     time.Duration
}

// clientLimit - bucket and block state of one key
type clientLimit struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	blockUntil time.Time
}

// RateLimiter - per-key rate limiting manager
type RateLimiter struct {
	store   map[string]*clientLimit
	mutex   sync.Mutex
	idleTTL time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a limiter whose idle entries are dropped after idleTTL.
// The cleanup goroutine stops with ctx.
func NewRateLimiter(ctx context.Context, cleanupInterval, idleTTL time.Duration) *RateLimiter {
	rl := &RateLimiter{
		store:   make(map[string]*clientLimit),
		idleTTL: idleTTL,
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		go rl.cleanup(ctx, cleanupInterval)
	}
	return rl
}

// cleanup - remove idle records periodically
func (rl *RateLimiter) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mutex.Lock()
			now := rl.now()
			for key, limit := range rl.store {
				if now.Sub(limit.lastAccess) > rl.idleTTL && now.After(limit.blockUntil) {
					delete(rl.store, key)
				}
			}
			rl.mutex.Unlock()
		}
	}
}

// allow reports whether key may proceed and, if not, for how long it is refused
func (rl *RateLimiter) allow(key string, config RateLimitConfig) (bool, time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	limit, exists := rl.store[key]
	if !exists {
		limit = &clientLimit{limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)}
		rl.store[key] = limit
	}
	limit.lastAccess = now

	if now.Before(limit.blockUntil) {
		return false, limit.blockUntil.Sub(now)
	}

	if !limit.limiter.AllowN(now, 1) {
		if config.BlockDuration > 0 {
			limit.blockUntil = now.Add(config.BlockDuration)
			return false, config.BlockDuration
		}
		return false, time.Second
	}
	return true, 0
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.store)
}

// RateLimitMiddleware - per client IP rate limiting. prefix separates the
// buckets of different endpoints sharing one limiter.
func (rl *RateLimiter) RateLimitMiddleware(prefix string, config RateLimitConfig, message string) gin.HandlerFunc {
	if message == "" {
		message = "Rate limit exceeded. Please try again later."
	}
	return func(c *gin.Context) {
		key := prefix + ":" + c.ClientIP()

		if ok, retryAfter := rl.allow(key, config); !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"message": message,
			})
			return
		}

		c.Next()
	}
}
