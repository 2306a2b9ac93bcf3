package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RouteLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics("/ws"))
	r.GET("/tickets/:id", func(c *gin.Context) { c.String(http.StatusOK, "ticket") })
	r.POST("/files", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) })

	baseTicket := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/tickets/:id", "200"))
	baseMissing := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))
	baseWS := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws", "101"))

	for _, id := range []string{"t1", "t2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tickets/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	for _, p := range []string{"/wp-admin", "/.env"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("pdf-bytes")))

	assert.Equal(t, baseTicket+2, testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/tickets/:id", "200")))
	assert.Equal(t, baseMissing+2, testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, baseWS, testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ws", "101")), "skipped paths are not counted")
	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpReqSize), 1, "upload size observed")
	assert.Zero(t, testutil.ToFloat64(httpInflight))
}
