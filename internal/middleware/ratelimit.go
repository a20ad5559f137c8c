package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/detailing-api/pkg/httputil"
)

type RateLimiterConfig struct {
	RPS   float64
	Burst int
	// IdleTTL is how long an idle client's bucket is kept.
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config  RateLimiterConfig
	mu      sync.Mutex
	clients *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:  config,
		clients: cache.New(config.IdleTTL, 2*config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.clients.Get(key); ok {
		l := v.(*rate.Limiter)
		// Refresh the expiry so active clients keep their bucket.
		rl.clients.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)
	rl.clients.SetDefault(key, l)
	return l
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.admit(c) {
			c.Next()
		}
	}
}

// Guard wraps a handler that is invoked directly rather than through a route
// chain. A nil limiter returns next unchanged.
func (rl *RateLimiter) Guard(next gin.HandlerFunc) gin.HandlerFunc {
	if rl == nil {
		return next
	}
	return func(c *gin.Context) {
		if rl.admit(c) {
			next(c)
		}
	}
}

func (rl *RateLimiter) admit(c *gin.Context) bool {
	if c.Request.Method == http.MethodOptions || rl.Allow(c.ClientIP()) {
		return true
	}
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
		Error:   httputil.TitleTooManyRequests,
		Message: "Rate limit exceeded, please slow down",
	})
	return false
}
