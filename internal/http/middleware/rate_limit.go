package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/pkg/logger"
)

const MsgTooManyRequests = "Too many requests from this IP, please try again in an hour!"

// Counter counts hits per key in fixed windows.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                          // Max requests per window
	Window   time.Duration                // Time window duration
	KeyFunc  func(r *http.Request) string // Rate limit key, client IP by default
	SkipFunc func(r *http.Request) bool
}

type RateLimiter struct {
	counter Counter
	config  RateLimitConfig
	errs    *response.Writer
}

func NewRateLimiter(counter Counter, config RateLimitConfig, errs *response.Writer) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = func(r *http.Request) string { return "ip:" + ClientIP(r) }
	}
	return &RateLimiter{counter: counter, config: config, errs: errs}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			count, remaining, err := rl.counter.Incr(r.Context(), rl.config.KeyFunc(r), rl.config.Window)
			if err != nil {
				// fail open
				logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			left := int64(rl.config.Requests) - count
			if left < 0 {
				left = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))

			if count > int64(rl.config.Requests) {
				w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())))
				rl.errs.Error(w, r, apperr.RateLimited(MsgTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryCounter is the in-process Counter used when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*window), now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// ClientIP extracts the real client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
