package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"carmen/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window limiter ──────────────────────────────────────────────────────

type windowEntry struct {
	count     int
	windowEnd time.Time
}

// windowLimiter counts requests per key in fixed windows.
type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// allow records one hit for key and reports whether it is within the limit,
// plus when the current window ends.
func (l *windowLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purge drops expired windows and returns how many were removed.
func (l *windowLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

const purgeInterval = 5 * time.Minute

// startPurge removes expired entries so keys that never return do not pile up.
func (l *windowLimiter) startPurge(name string) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := l.purge(); n > 0 {
				log.Debug().Str("limiter", name).Int("purged", n).Msg("rate limiter entries purged")
			}
		}
	}()
}

func (l *windowLimiter) middleware(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.allow(c.ClientIP())
		if !ok {
			wait := int(time.Until(windowEnd).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	l := newWindowLimiter(20, time.Minute)
	l.startPurge("login")
	return l.middleware("Too many login attempts, try again in a minute")
}

// RateLimiter limits every client IP to limit requests per window.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	l := newWindowLimiter(limit, window)
	l.startPurge("api")
	return l.middleware("Too many requests, slow down")
}
