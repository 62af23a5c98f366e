package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// idleAfter is how long a full bucket is kept before it is dropped.
const idleAfter = 10 * time.Minute

// TokenBucket is an in-memory per-client rate limiter.
type TokenBucket struct {
	capacity  float64
	perSecond float64
	now       func() time.Time

	mu        sync.Mutex
	state     map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket allows bursts of capacity requests and refills perMinute
// tokens a minute. A non-positive capacity means capacity = perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity:  float64(capacity),
		perSecond: float64(perMinute) / 60,
		now:       time.Now,
		state:     make(map[string]*bucket),
	}
}

// GinMiddleware enforces the limit per client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if ok, wait := l.allow(ip); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// allow takes one token for key. When none is left it returns how long
// until the next one.
func (l *TokenBucket) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}
	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.last).Seconds()*l.perSecond)
	b.last = now

	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

func (l *TokenBucket) prune(now time.Time) {
	if now.Sub(l.lastPrune) < idleAfter {
		return
	}
	l.lastPrune = now
	for key, b := range l.state {
		if now.Sub(b.last) >= idleAfter {
			delete(l.state, key)
		}
	}
}
