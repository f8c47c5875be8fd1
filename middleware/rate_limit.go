package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractscore/pkg/logger"
)

// RateLimiter is a fixed-window counter per caller. Uploads and exports are
// the expensive routes it guards.
type RateLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time
	rate        int
	window      time.Duration
	now         func() time.Time
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counts:      make(map[string]int),
		windowStart: time.Now(),
		rate:        rate,
		window:      window,
		now:         time.Now,
	}
}

// Allow records one request for key. When the key is over its budget it
// returns false and the time left in the current window.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.counts = make(map[string]int)
		l.windowStart = now
	}
	if l.counts[key] >= l.rate {
		return false, l.window - now.Sub(l.windowStart)
	}
	l.counts[key]++
	return true, 0
}

// RateLimit limits requests per authenticated user, or per client IP for
// anonymous callers.
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	return RateLimitWith(NewRateLimiter(rate, window))
}

func RateLimitWith(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUsername(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		ok, retryAfter := limiter.Allow(key)
		if !ok {
			logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
				"key", key,
				"path", c.Request.URL.Path,
			)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
