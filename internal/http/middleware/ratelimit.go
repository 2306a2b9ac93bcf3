// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-memory token-bucket rate limiter. Every caller
// gets a default budget; selected routes (the chatbot, which may call a paid
// provider, and the public forms, which attract spam) get their own tighter
// buckets. Staff traffic from the agent dashboard is scaled up.
//
// Buckets are process-local and evicted after a period of inactivity.
// Idempotent replays flagged by IdempotencyValidator are never limited.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route class.",
	},
	[]string{"class"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the caller id set by Identity and falls
// back to the client IP. Keys are prefixed so the namespaces never collide
// ("user:abc123" vs "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := UserID(c); id != "" {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

// defaultClass names the bucket class of routes without an override.
const defaultClass = "default"

type budget struct {
	class string
	rps   rate.Limit
	burst int
}

// visitor holds one bucket and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-caller, per-route-class token buckets.
// It is safe for concurrent use.
type RateLimiter struct {
	def    budget
	routes map[string]budget
	keyFn  keyFunc

	// staffFactor multiplies rps and burst for agents and admins.
	staffFactor float64

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter whose default budget is rps
// tokens per second with the given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		def:         newBudget(defaultClass, rps, burst),
		routes:      make(map[string]budget),
		keyFn:       keyFn,
		staffFactor: 1,
		visitors:    make(map[string]*visitor),
		ttl:         10 * time.Minute,
	}
}

func newBudget(class string, rps float64, burst int) budget {
	if burst <= 0 {
		burst = 1
	}
	return budget{class: class, rps: rate.Limit(rps), burst: burst}
}

// Limit gives the routes (each "METHOD /full/path") a shared budget named
// class. Callers hold one bucket per class, so the routes of a class drain
// the same tokens.
func (rl *RateLimiter) Limit(class string, rps float64, burst int, routes ...string) *RateLimiter {
	b := newBudget(class, rps, burst)
	for _, r := range routes {
		rl.routes[r] = b
	}
	return rl
}

// StaffFactor scales every budget for staff callers. Values below 1 are
// ignored.
func (rl *RateLimiter) StaffFactor(f float64) *RateLimiter {
	if f >= 1 {
		rl.staffFactor = f
	}
	return rl
}

func (rl *RateLimiter) budgetFor(c *gin.Context) budget {
	b, ok := rl.routes[c.Request.Method+" "+c.FullPath()]
	if !ok {
		b = rl.def
	}
	if rl.staffFactor > 1 && IsStaff(c) {
		b.rps = rate.Limit(float64(b.rps) * rl.staffFactor)
		b.burst = int(math.Ceil(float64(b.burst) * rl.staffFactor))
		b.class += ":staff"
	}
	return b
}

// getVisitor returns the bucket for key, creating it from b when absent.
// Idle buckets are swept every 5000 lookups, before the requested key is
// touched, so a stale entry can be evicted even when it is the one asked for.
func (rl *RateLimiter) getVisitor(key string, b budget) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(b.rps, b.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay that must not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds until one token is back.
func retryAfter(b budget) int {
	if b.rps <= 0 {
		return 60
	}
	secs := int(math.Ceil(1 / float64(b.rps)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Handler returns the Gin middleware enforcing the budgets. Rejected
// requests get 429 with Retry-After, X-RateLimit-Limit and the error
// envelope:
//
//	{"request_id": "<uuid>", "code": "too_many_requests", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		b := rl.budgetFor(c)
		key := b.class + "|" + rl.keyFn(c)
		if rl.getVisitor(key, b).Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(b.class).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfter(b)))
		c.Header("X-RateLimit-Limit", strconv.Itoa(b.burst))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
