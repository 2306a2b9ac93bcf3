package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHSTSMaxAge = 180 * 24 * time.Hour

	// apiCSP locks JSON and file responses out of any active content.
	apiCSP = "default-src 'none'; frame-ancestors 'none'; sandbox"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration

	// CacheControl is sent on every response whose handler did not set one,
	// e.g. "private, no-cache" so ETag revalidation keeps working.
	CacheControl string
	// PublicPrefixes lists GET routes (site pages, FAQs, suggestions) that
	// may be cached by shared caches with PublicCacheControl. Staff can see
	// drafts there, so those responses vary on the role header.
	PublicPrefixes     []string
	PublicCacheControl string

	// DocsPrefix is served without the API content security policy so the
	// Swagger UI can load its scripts.
	DocsPrefix string

	// EnablePolicy sends Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// SecurityHeaders sets the baseline browser hardening headers, the cache
// policy of the route, and exposes X-Request-ID and ETag to browser callers.
func SecurityHeaders(opts SecurityOptions) gin.HandlerFunc {
	maxAge := opts.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		path := c.Request.URL.Path

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		if opts.DocsPrefix == "" || !strings.HasPrefix(path, opts.DocsPrefix) {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if opts.EnablePolicy {
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=(), usb=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opts.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if cc := cacheControlFor(opts, c.Request.Method, path); cc != "" && h.Get("Cache-Control") == "" {
			h.Set("Cache-Control", cc)
			if cc == opts.PublicCacheControl {
				h.Add("Vary", HeaderUserRole)
			}
		}

		exposeHeaders(h, "X-Request-ID", "ETag")

		c.Next()
	}
}

func cacheControlFor(opts SecurityOptions, method, path string) string {
	if opts.PublicCacheControl != "" && (method == http.MethodGet || method == http.MethodHead) {
		for _, p := range opts.PublicPrefixes {
			if path == p || strings.HasPrefix(path, p+"/") {
				return opts.PublicCacheControl
			}
		}
	}
	return opts.CacheControl
}

// exposeHeaders appends names missing from Access-Control-Expose-Headers.
func exposeHeaders(h http.Header, names ...string) {
	cur := h.Get("Access-Control-Expose-Headers")
	have := make(map[string]bool)
	for _, v := range strings.Split(cur, ",") {
		if v = strings.TrimSpace(v); v != "" {
			have[strings.ToLower(v)] = true
		}
	}
	for _, n := range names {
		if have[strings.ToLower(n)] {
			continue
		}
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set("Access-Control-Expose-Headers", cur)
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
