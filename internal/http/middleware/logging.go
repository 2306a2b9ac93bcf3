package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the logged query string, in bytes.
	maxQueryLogLength = 1024
	redactedValue     = "[REDACTED]"
)

// RequestID reuses the caller's X-Request-ID or generates a UUID, stores it
// in the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RedactOptions configures RedactingLogger. MaskHeaders are replaced with
// [REDACTED] on top of the built-in credential and identity headers.
type RedactOptions struct {
	MaskHeaders []string
}

// Customers type phone numbers (WhatsApp opt-in, callbacks) and emails into
// forms that end up in query strings, so both are scrubbed before logging.
// UUIDs go first so the phone pattern never eats their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`(?:\+|\b)(?:\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger attaches a request-scoped zerolog.Logger (see LoggerFrom)
// and writes one access log line per request. Bodies are never logged;
// query strings and headers are scrubbed, and the caller id travels only as
// a masked header. 4xx logs at warn, 5xx and handler errors at error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{
		"authorization":               true,
		"cookie":                      true,
		"set-cookie":                  true,
		strings.ToLower(HeaderUserID): true,
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("user_role", UserRole(c)).
			Logger()
		c.Set(loggerKey, &l)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if masked[strings.ToLower(k)] {
				headers[k] = redactedValue
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}
		query := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// Recovery turns a panic into the standard 500 envelope when nothing has
// been written yet, and logs the stack with the request's logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or one carrying only the
// request id when RedactingLogger is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	if rid := RequestIDFrom(c); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
