package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cashledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window rate limiter ─────────────────────────────────────────────────

type rateEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimiter counts requests per client IP inside fixed windows.
type RateLimiter struct {
	limit   int
	window  time.Duration
	message string
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*rateEntry
}

func NewRateLimiter(limit int, window time.Duration, message string) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		message: message,
		now:     time.Now,
		entries: make(map[string]*rateEntry),
	}
}

// NewLoginRateLimiter allows 20 login attempts per minute per IP.
func NewLoginRateLimiter() *RateLimiter {
	return NewRateLimiter(20, time.Minute, "Too many login attempts. Try again in a minute.")
}

// allow records one hit for key and reports whether it is within the limit,
// plus the end of the current window.
func (l *RateLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.allow(c.ClientIP())
		if !ok {
			wait := int(windowEnd.Sub(l.now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// purge drops expired entries and returns how many it removed.
func (l *RateLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for key, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

// StartPurge removes expired entries every interval until ctx is done, so IPs
// that never return do not accumulate.
func (l *RateLimiter) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.purge(); n > 0 {
					log.Debug().Int("purged", n).Msg("rate limiter entries purged")
				}
			}
		}
	}()
}
