// Callback and support form HTTP handlers.
//
// This file exposes:
//   - POST  /callbacks            (request a phone call; idempotent)
//   - GET   /callbacks            (list, optional ?status=)
//   - GET   /callbacks/{id}
//   - PATCH /callbacks/{id}       (status, notes)
//   - POST  /support-forms        (contact form; idempotent)
//   - GET   /support-forms        (list, optional ?status=)
//   - PATCH /support-forms/{id}   (status, assignment)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/services"
)

//
// DTOs
//

// CreateCallbackRequest is the JSON payload of POST /callbacks.
type CreateCallbackRequest struct {
	Name          string `json:"name" binding:"required,max=255" example:"Jane Doe"`
	Email         string `json:"email" binding:"omitempty,email" example:"jane@example.com"`
	Phone         string `json:"phone" binding:"required,max=32" example:"+5926001234"`
	PreferredTime string `json:"preferredTime" binding:"max=64" example:"weekday mornings"`
	Reason        string `json:"reason" binding:"max=2000" example:"Quote for a 5 kW system"`
}

// UpdateCallbackRequest is the JSON payload of PATCH /callbacks/{id}.
type UpdateCallbackRequest struct {
	Status *string `json:"status" binding:"omitempty,oneof=pending completed cancelled" example:"completed"`
	Notes  *string `json:"notes" binding:"omitempty,max=4000"`
}

// CreateSupportFormRequest is the JSON payload of POST /support-forms.
type CreateSupportFormRequest struct {
	FormType string `json:"formType" binding:"omitempty,max=32" example:"contact"`
	Name     string `json:"name" binding:"required,max=255" example:"Jane Doe"`
	Email    string `json:"email" binding:"required,email" example:"jane@example.com"`
	Phone    string `json:"phone" binding:"max=32"`
	Subject  string `json:"subject" binding:"max=255" example:"Battery backup"`
	Message  string `json:"message" binding:"required,max=10000" example:"How long would a 10 kWh battery last?"`
}

// UpdateSupportFormRequest is the JSON payload of PATCH /support-forms/{id}.
type UpdateSupportFormRequest struct {
	Status     *string `json:"status" binding:"omitempty,oneof=new in_progress responded closed" example:"responded"`
	AssignedTo *string `json:"assignedTo" binding:"omitempty,max=64"`
}

//
// Callback handlers
//

// CreateCallback godoc
// @ID          createCallback
// @Summary     Request a callback
// @Description Stores a pending request with a reference number, alerts the team and confirms to the customer.
// @Tags        Callbacks
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateCallbackRequest  true  "Callback request"
// @Success     200  {object}  domain.CallbackRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /callbacks [post]
func (h *Handlers) CreateCallback(c *gin.Context) {
	if replayCreate(h, c, h.callbacks.Get) {
		return
	}
	var req CreateCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and phone are required")
		return
	}
	cb, err := h.callbacks.Create(c.Request.Context(), services.NewCallback{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		PreferredTime: req.PreferredTime,
		Reason:        req.Reason,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.rememberCreate(c, cb.ID, http.StatusOK)
	ok(c, http.StatusOK, cb)
}

// ListCallbacks godoc
// @ID          listCallbacks
// @Summary     List callback requests
// @Tags        Callbacks
// @Produce     json
// @Param       status  query  string  false "Filter by status"  Enums(pending, completed, cancelled)
// @Success     200  {array}   domain.CallbackRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Router      /callbacks [get]
func (h *Handlers) ListCallbacks(c *gin.Context) {
	items, err := h.callbacks.List(c.Request.Context(), strings.TrimSpace(c.Query("status")))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetCallback godoc
// @ID          getCallback
// @Summary     Fetch a callback request
// @Tags        Callbacks
// @Produce     json
// @Param       id  path  string  true  "Callback ID"
// @Success     200  {object}  domain.CallbackRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /callbacks/{id} [get]
func (h *Handlers) GetCallback(c *gin.Context) {
	cb, err := h.callbacks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cb)
}

// UpdateCallback godoc
// @ID          updateCallback
// @Summary     Update a callback request
// @Description Completing a request stamps contacted_at once.
// @Tags        Callbacks
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Callback ID"
// @Param       body  body  handlers.UpdateCallbackRequest  true  "Changes"
// @Success     200  {object}  domain.CallbackRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /callbacks/{id} [patch]
func (h *Handlers) UpdateCallback(c *gin.Context) {
	var req UpdateCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid callback update")
		return
	}
	cb, err := h.callbacks.Update(c.Request.Context(), c.Param("id"), services.CallbackUpdate{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, cb)
}

//
// Support form handlers
//

// CreateSupportForm godoc
// @ID          createSupportForm
// @Summary     Submit a contact form
// @Tags        SupportForms
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateSupportFormRequest  true  "Form"
// @Success     200  {object}  domain.SupportForm
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /support-forms [post]
func (h *Handlers) CreateSupportForm(c *gin.Context) {
	if replayCreate(h, c, h.forms.Get) {
		return
	}
	var req CreateSupportFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and message are required")
		return
	}
	f, err := h.forms.Create(c.Request.Context(), services.NewSupportForm{
		FormType: req.FormType,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Subject:  req.Subject,
		Message:  req.Message,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.rememberCreate(c, f.ID, http.StatusOK)
	ok(c, http.StatusOK, f)
}

// ListSupportForms godoc
// @ID          listSupportForms
// @Summary     List contact form submissions
// @Tags        SupportForms
// @Produce     json
// @Param       status  query  string  false "Filter by status"  Enums(new, in_progress, responded, closed)
// @Success     200  {array}   domain.SupportForm
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Router      /support-forms [get]
func (h *Handlers) ListSupportForms(c *gin.Context) {
	items, err := h.forms.List(c.Request.Context(), strings.TrimSpace(c.Query("status")))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// UpdateSupportForm godoc
// @ID          updateSupportForm
// @Summary     Update a contact form submission
// @Tags        SupportForms
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Form ID"
// @Param       body  body  handlers.UpdateSupportFormRequest  true  "Changes"
// @Success     200  {object}  domain.SupportForm
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /support-forms/{id} [patch]
func (h *Handlers) UpdateSupportForm(c *gin.Context) {
	var req UpdateSupportFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form update")
		return
	}
	f, err := h.forms.Update(c.Request.Context(), c.Param("id"), services.SupportFormUpdate{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, f)
}
