package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

// logLines decodes every JSON log line written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func accessLogged(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	for _, l := range logLines(t, buf) {
		if l["message"] == "http_request" {
			return l
		}
	}
	t.Fatalf("no access log in:\n%s", buf.String())
	return nil
}

func loggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-API-Key"}}), Recovery())
	return r
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name, header string
		keep         bool
	}{
		{"generated", "", false},
		{"propagated", "support-42", true},
		{"oversized replaced", strings.Repeat("x", 200), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.header != "" {
				req.Header.Set("x-request-id", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			require.NotEmpty(t, got)
			assert.Equal(t, seen, got)
			if tc.keep {
				assert.Equal(t, tc.header, got)
			} else {
				assert.Len(t, got, 36)
			}
		})
	}
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	buf := captureLogger(t)
	r := loggedRouter()
	r.GET("/callbacks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet,
		"/callbacks/42?phone=%2B357+99+123456&email=maria@example.com&ref=123e4567-e89b-12d3-a456-426614174000", nil)
	req.Header.Set(HeaderUserID, "cust-9")
	req.Header.Set(HeaderUserRole, "customer")
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-API-Key", "k-1")
	req.Header.Set("X-Contact", "call me on +357 9912 3456")
	r.ServeHTTP(httptest.NewRecorder(), req)

	l := accessLogged(t, buf)
	assert.Equal(t, "info", l["level"])
	assert.Equal(t, "/callbacks/:id", l["path"])
	assert.Equal(t, "customer", l["user_role"])

	q, _ := l["query"].(string)
	assert.NotContains(t, q, "example.com")
	assert.NotContains(t, q, "426614174000")
	assert.Contains(t, q, "[REDACTED:email]")
	assert.Contains(t, q, "[REDACTED:id]")

	hdr, _ := l["headers"].(map[string]any)
	assert.Equal(t, redactedValue, hdr["Authorization"])
	assert.Equal(t, redactedValue, hdr["X-Api-Key"])
	assert.Equal(t, redactedValue, hdr["X-User-Id"])
	assert.Equal(t, "call me on [REDACTED:phone]", hdr["X-Contact"])
	assert.NotContains(t, buf.String(), "cust-9")
}

func TestRedactingLogger_Levels(t *testing.T) {
	cases := []struct {
		name    string
		handler gin.HandlerFunc
		level   string
	}{
		{"ok", func(c *gin.Context) { c.Status(http.StatusOK) }, "info"},
		{"client error", func(c *gin.Context) { c.Status(http.StatusNotFound) }, "warn"},
		{"server error", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) }, "error"},
		{"handler error", func(c *gin.Context) {
			_ = c.Error(assert.AnError)
			c.Status(http.StatusBadRequest)
		}, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogger(t)
			r := loggedRouter()
			r.GET("/x", tc.handler)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.level, accessLogged(t, buf)["level"])
		})
	}
}

func TestLoggerFrom(t *testing.T) {
	t.Run("request scoped", func(t *testing.T) {
		buf := captureLogger(t)
		r := loggedRouter()
		r.POST("/tickets", func(c *gin.Context) {
			LoggerFrom(c).Info().Str("ticket_id", "t1").Msg("ticket created")
			c.Status(http.StatusCreated)
		})
		req := httptest.NewRequest(http.MethodPost, "/tickets", nil)
		req.Header.Set(requestIDHeader, "rid-7")
		r.ServeHTTP(httptest.NewRecorder(), req)

		for _, l := range logLines(t, buf) {
			if l["message"] == "ticket created" {
				assert.Equal(t, "rid-7", l["request_id"])
				assert.Equal(t, "/tickets", l["path"])
				return
			}
		}
		t.Fatalf("handler log missing:\n%s", buf.String())
	})

	t.Run("fallback keeps request id", func(t *testing.T) {
		buf := captureLogger(t)
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/x", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("plain")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(requestIDHeader, "rid-8")
		r.ServeHTTP(httptest.NewRecorder(), req)

		lines := logLines(t, buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "rid-8", lines[0]["request_id"])
		assert.Nil(t, lines[0]["path"])
	})
}

func TestRecovery(t *testing.T) {
	t.Run("panic before write", func(t *testing.T) {
		buf := captureLogger(t)
		r := loggedRouter()
		r.GET("/panic", func(c *gin.Context) { panic("inverter exploded") })

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		req.Header.Set(requestIDHeader, "rid-p")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "internal_error", body["code"])
		assert.Equal(t, "rid-p", body["request_id"])
		assert.Contains(t, buf.String(), `"message":"panic recovered"`)
		assert.Equal(t, "error", accessLogged(t, buf)["level"])
	})

	t.Run("panic after write", func(t *testing.T) {
		captureLogger(t)
		r := loggedRouter()
		r.GET("/late", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			panic("late")
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
		assert.Equal(t, "partial", w.Body.String())
	})
}

func TestRedactAndTruncate(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "page=2&limit=20", redact("page=2&limit=20"))
	assert.Equal(t, "to [REDACTED:email]", redact("to ops@solar.example"))
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "abcde…", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 0))
}
