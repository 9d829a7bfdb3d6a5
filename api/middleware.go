package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/killallgit/podcast-dl/api/types"
)

// Idle clients are forgotten after this long
const limiterIdleTimeout = 10 * time.Minute

// clientLimiter holds a rate limiter and its last accessed time
type clientLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func (cl *clientLimiter) touch(now time.Time) {
	cl.mu.Lock()
	cl.lastSeen = now
	cl.mu.Unlock()
}

func (cl *clientLimiter) idleSince(now time.Time) time.Duration {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return now.Sub(cl.lastSeen)
}

// CORS allows read-only cross-origin access
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs each request through slog
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP())
	}
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	clients  sync.Map
	rps      rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows rps requests per second per client with the given burst
// and starts a goroutine that forgets idle clients until Stop is called.
func NewRateLimiter(rps, burst int) *RateLimiter {
	rl := &RateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		stop:  make(chan struct{}),
	}
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

// Middleware rejects requests beyond the client's budget with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		value, _ := rl.clients.LoadOrStore(c.ClientIP(), &clientLimiter{
			limiter:  rate.NewLimiter(rl.rps, rl.burst),
			lastSeen: now,
		})
		cl := value.(*clientLimiter)
		cl.touch(now)

		if !cl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.ErrorResponse{
				Status: types.StatusError,
				Code:   "RATE_LIMITED",
				Error:  "Rate limit exceeded. Please slow down your requests.",
			})
			return
		}
		c.Next()
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// prune forgets clients idle longer than maxIdle and returns how many were removed
func (rl *RateLimiter) prune(now time.Time, maxIdle time.Duration) int {
	removed := 0
	rl.clients.Range(func(key, value any) bool {
		if value.(*clientLimiter).idleSince(now) > maxIdle {
			rl.clients.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.prune(now, limiterIdleTimeout)
		case <-rl.stop:
			return
		}
	}
}
