package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/solar-support-backend/internal/http/middleware"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestFail_EnvelopeCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found") })
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusBadGateway, ErrCodeInternal, "upstream") })

	w := send(r, http.MethodGet, "/missing", "", map[string]string{"X-Request-ID": "rid-404"})
	require.Equal(t, http.StatusNotFound, w.Code)
	er := decode[ErrorResponse](t, w)
	assert.Equal(t, ErrorResponse{RequestID: "rid-404", Code: ErrCodeNotFound, Message: "ticket not found"}, er)
	assert.Empty(t, buf.String(), "4xx must not be logged as api errors")

	w = send(r, http.MethodGet, "/boom", "", map[string]string{"X-Request-ID": "rid-502"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "rid-502", decode[ErrorResponse](t, w).RequestID)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"request_id":"rid-502"`)
}

func TestFailService_UnmappedHidesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogs(t)

	var gotErrs int
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		failService(c, errors.New("sqlite: database is locked"), ErrCodeListFailed)
		gotErrs = len(c.Errors)
	})

	w := send(r, http.MethodGet, "/x", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	er := decode[ErrorResponse](t, w)
	assert.Equal(t, ErrCodeListFailed, er.Code)
	assert.NotContains(t, er.Message, "sqlite")
	assert.Equal(t, 1, gotErrs)
}

func TestOkAndNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/tickets", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": "t1"}) })
	r.DELETE("/files/f1", noContent)

	w := send(r, http.MethodPost, "/tickets", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", decode[map[string]any](t, w)["id"])

	w = send(r, http.MethodDelete, "/files/f1", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}
