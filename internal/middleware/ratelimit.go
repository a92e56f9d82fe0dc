package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per key (client IP or user id)
type KeyedRateLimiter struct {
	keys  map[string]*rateLimiterEntry
	mu    sync.Mutex
	r     rate.Limit
	burst int
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter creates a limiter allowing r events per second with
// the given burst for each key
func NewKeyedRateLimiter(r rate.Limit, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		keys:  make(map[string]*rateLimiterEntry),
		r:     r,
		burst: burst,
	}
}

// Allow reports whether key may proceed now
func (rl *KeyedRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.keys[key]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.keys[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Prune drops keys idle for longer than maxIdle
func (rl *KeyedRateLimiter) Prune(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.keys {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(rl.keys, key)
		}
	}
}

// StartPruning prunes idle keys every minute until stop is closed
func (rl *KeyedRateLimiter) StartPruning(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.Prune(3 * time.Minute)
			}
		}
	}()
}

var (
	// General API: 600 requests per minute per IP
	GeneralLimiter = NewKeyedRateLimiter(rate.Limit(10.0), 50)

	// Chat messages: 30 per minute per sender
	ChatLimiter = NewKeyedRateLimiter(rate.Limit(30.0/60.0), 10)
)

// RateLimitMiddleware limits by authenticated user when known, else by IP
func RateLimitMiddleware(limiter *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userId")
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			logger.Warn().
				Str("key", key).
				Str("path", c.Request.URL.Path).
				Msg("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"message": "Rate limit exceeded. Please slow down.",
			})
			return
		}

		c.Next()
	}
}

func GeneralRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(GeneralLimiter)
}

func ChatRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(ChatLimiter)
}
