package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"reflexduel/internal/metrics"

	"github.com/gin-gonic/gin"
)

// counter counts hits of key inside a fixed window.
type counter interface {
	hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type memWindow struct {
	start time.Time
	count int64
}

// memoryCounter is the single-process fallback used when Redis is not
// configured.
type memoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{windows: make(map[string]*memWindow), now: time.Now}
}

func (m *memoryCounter) hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) > window {
		w = &memWindow{start: now}
		m.windows[key] = w
	}
	w.count++

	// keep the map from growing without bound
	if len(m.windows) > 10000 {
		for k, v := range m.windows {
			if now.Sub(v.start) > window {
				delete(m.windows, k)
			}
		}
	}
	return w.count, nil
}

var fallback = newMemoryCounter()

func activeCounter() counter {
	if rc := currentRedis(); rc != nil {
		return rc
	}
	return fallback
}

// RateLimit is a fixed-window limit per client IP.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return limit("rl", maxRequests, window, func(c *gin.Context) (string, bool) {
		return c.ClientIP(), true
	})
}

// PlayerRateLimit is a fixed-window limit per authenticated player. It must
// run after JWT.
func PlayerRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return limit("player_rl", maxRequests, window, PlayerID)
}

func limit(prefix string, maxRequests int, window time.Duration, ident func(*gin.Context) (string, bool)) gin.HandlerFunc {
	windowKey := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		if maxRequests <= 0 {
			c.Next()
			return
		}
		id, ok := ident(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		endpoint := prefix + ":" + c.FullPath()
		val, err := activeCounter().hit(c.Request.Context(), prefix+":"+windowKey+":"+id, window)
		if err != nil {
			// fail open
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			metrics.RLBlocked.WithLabelValues(endpoint).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		metrics.RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
