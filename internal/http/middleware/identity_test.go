package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveIdentity(t *testing.T, guard gin.HandlerFunc, hdr map[string]string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity())
	var gotID, gotRole string
	handlers := []gin.HandlerFunc{}
	if guard != nil {
		handlers = append(handlers, guard)
	}
	handlers = append(handlers, func(c *gin.Context) {
		gotID, gotRole = UserID(c), UserRole(c)
		c.Status(http.StatusNoContent)
	})
	r.GET("/who", handlers...)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, gotID, gotRole
}

func TestIdentity_HeadersAndDefaults(t *testing.T) {
	_, id, role := serveIdentity(t, nil, nil)
	if id != "" || role != "customer" {
		t.Fatalf("anonymous: id=%q role=%q", id, role)
	}

	_, id, role = serveIdentity(t, nil, map[string]string{HeaderUserID: " u1 ", HeaderUserRole: "ADMIN"})
	if id != "u1" || role != "admin" {
		t.Fatalf("admin: id=%q role=%q", id, role)
	}

	_, _, role = serveIdentity(t, nil, map[string]string{HeaderUserID: "u2", HeaderUserRole: "root"})
	if role != "customer" {
		t.Fatalf("unknown role should downgrade, got %q", role)
	}
}

func TestRequireStaff(t *testing.T) {
	cases := []struct {
		name string
		hdr  map[string]string
		want int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"customer", map[string]string{HeaderUserID: "c1", HeaderUserRole: "customer"}, http.StatusForbidden},
		{"role without id", map[string]string{HeaderUserRole: "agent"}, http.StatusForbidden},
		{"agent", map[string]string{HeaderUserID: "a1", HeaderUserRole: "agent"}, http.StatusNoContent},
		{"admin", map[string]string{HeaderUserID: "a2", HeaderUserRole: "admin"}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _, _ := serveIdentity(t, RequireStaff(), tc.hdr)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusForbidden {
				var body map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if body["code"] != "forbidden" || body["request_id"] == "" {
					t.Fatalf("unexpected body: %v", body)
				}
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	w, _, _ := serveIdentity(t, RequireAdmin(), map[string]string{HeaderUserID: "a1", HeaderUserRole: "agent"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("agent: status = %d", w.Code)
	}
	w, _, _ = serveIdentity(t, RequireAdmin(), map[string]string{HeaderUserID: "a2", HeaderUserRole: "admin"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin: status = %d", w.Code)
	}
}
