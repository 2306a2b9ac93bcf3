package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for support staff to find the server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go.
	Code string `json:"code" example:"not_found"`
	// Safe to show to the customer.
	Message string `json:"message" example:"ticket not found"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func requestID(c *gin.Context) string {
	if rid := middleware.RequestIDFrom(c); rid != "" {
		return rid
	}
	return c.Writer.Header().Get("X-Request-ID")
}

// errorMapping binds service sentinels to a status and code. The first
// match wins.
var errorMapping = []struct {
	errs   []error
	status int
	code   string
}{
	{
		errs: []error{
			services.ErrTicketNotFound, services.ErrCallbackNotFound, services.ErrFormNotFound,
			services.ErrNotificationNotFound, services.ErrSessionNotFound, services.ErrTransferNotFound,
			services.ErrFileNotFound, services.ErrPageNotFound, services.ErrSectionNotFound,
			services.ErrFAQNotFound, services.ErrUserNotFound,
		},
		status: http.StatusNotFound, code: ErrCodeNotFound,
	},
	{errs: []error{services.ErrFileTooLarge}, status: http.StatusRequestEntityTooLarge, code: ErrCodePayloadTooLarge},
	{errs: []error{services.ErrFileType}, status: http.StatusUnsupportedMediaType, code: ErrCodeUnsupportedType},
	{errs: []error{services.ErrDuplicateUser, services.ErrDuplicateSlug}, status: http.StatusConflict, code: ErrCodeConflict},
	{errs: []error{services.ErrTransferNotPending}, status: http.StatusConflict, code: ErrCodeTransferNotPending},
	{
		errs: []error{
			services.ErrInvalidStatus, services.ErrInvalidPriority, services.ErrInvalidRole,
			services.ErrMissingField, services.ErrNoChanges, services.ErrEmptyConversation,
			services.ErrLastMessageNotUser, services.ErrNotStaff,
		},
		status: http.StatusBadRequest, code: ErrCodeValidation,
	},
}

// failService translates a service error into a response. fallback is the
// code of unmapped failures, which are logged and answered with 500.
func failService(c *gin.Context, err error, fallback string) {
	provider := errors.Is(err, services.ErrProviderUnavailable)
	switch {
	case provider && errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeProviderUnavailable, services.ProviderApology)
		return
	case provider:
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, services.ProviderApology)
		return
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeInternal, "request timed out")
		return
	}
	for _, m := range errorMapping {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				fail(c, m.status, m.code, err.Error())
				return
			}
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, fallback, "something went wrong, please try again")
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
