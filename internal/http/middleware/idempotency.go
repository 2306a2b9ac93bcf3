package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets the website retry ticket, callback and form
// submissions (flaky mobile networks) without creating duplicates.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~:-]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid result is stored for
// (caller, scope, key). Errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, caller, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator validates Idempotency-Key on POST, PUT and PATCH and
// stores it for the handlers. When lookup finds a stored result the request
// is flagged as a replay (see IsReplay) and skips the rate limiter. Other
// methods ignore the header. Malformed keys get 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			hit, err := lookup(c.Request.Context(), IdempotencyCaller(c), IdempotencyScope(c), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if hit && err == nil {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

func unsafeMethod(m string) bool {
	return m == http.MethodPost || m == http.MethodPut || m == http.MethodPatch
}

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request's key.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyScope is the operation a key belongs to: method, route
// template and path id, e.g. "POST /api/tickets/:id/messages#t-42".
func IdempotencyScope(c *gin.Context) string {
	scope := c.Request.Method + " " + c.FullPath()
	if id := c.Param("id"); id != "" {
		scope += "#" + id
	}
	return scope
}

// IdempotencyCaller namespaces keys per caller. Website visitors have no id,
// so their keys are bound to the client IP; two visitors picking the same
// key must never see each other's tickets.
func IdempotencyCaller(c *gin.Context) string {
	if id := UserID(c); id != "" {
		return "user:" + id
	}
	return AnonymousUser + ":" + c.ClientIP()
}
