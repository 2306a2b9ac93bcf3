// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity. Authentication is delegated to the
// gateway in front of the service, which forwards the verified user id and
// role as X-User-ID and X-User-Role. Requests without those headers are
// treated as anonymous customers (website visitors).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

const (
	// HeaderUserID carries the authenticated user id.
	HeaderUserID = "X-User-ID"
	// HeaderUserRole carries the authenticated user role.
	HeaderUserRole = "X-User-Role"

	// AnonymousUser is the identity used for callers without X-User-ID.
	AnonymousUser = "anonymous"

	ctxKeyUserID   = "userID"
	ctxKeyUserRole = "userRole"
)

// Identity copies X-User-ID and X-User-Role into the Gin context under
// "userID" and "userRole". Unknown roles are downgraded to customer.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" && len(id) <= 64 {
			c.Set(ctxKeyUserID, id)
		}
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		if !domain.ValidRole(role) {
			role = domain.RoleCustomer
		}
		c.Set(ctxKeyUserRole, role)
		c.Next()
	}
}

// UserID returns the caller id, or "" for anonymous callers.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserRole returns the caller role; customer when unset.
func UserRole(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserRole); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return domain.RoleCustomer
}

// IsStaff reports whether the caller is an agent or admin.
func IsStaff(c *gin.Context) bool { return domain.IsStaffRole(UserRole(c)) }

// RequireStaff aborts with 403 unless the caller is an identified agent or
// admin.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" || !IsStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "forbidden",
				"message":    "staff access required",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the caller is an identified admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" || UserRole(c) != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "forbidden",
				"message":    "admin access required",
			})
			return
		}
		c.Next()
	}
}
