package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

const limiterIdle = time.Hour

type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle limits how fast one session can send chat messages. The policy API
// forwards every message to a language model.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*sessionLimiter
	now      func() time.Time
}

func NewThrottle(perMinute float64, burst int) *Throttle {
	return &Throttle{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*sessionLimiter),
		now:      time.Now,
	}
}

func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	l, ok := t.limiters[key]
	if !ok {
		t.prune(now)
		l = &sessionLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

func (t *Throttle) prune(now time.Time) {
	for k, l := range t.limiters {
		if now.Sub(l.lastSeen) > limiterIdle {
			delete(t.limiters, k)
		}
	}
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rt := c.MustGet("rt").(*kernel.RequestRuntime)

		key := c.ClientIP()
		if rt.Session != nil {
			key = rt.Session.ID
		}
		if !t.Allow(key) {
			rt.Ef(http.StatusTooManyRequests, "too many chat messages, wait a moment and try again")
			return
		}
		c.Next()
	}
}
