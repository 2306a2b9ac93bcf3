// Ticket HTTP handlers.
//
// This file exposes REST endpoints for support tickets:
//   - POST  /tickets                 (create; idempotent with Idempotency-Key)
//   - GET   /tickets                 (list, paginated, ETag support)
//   - GET   /tickets/{id}            (fetch)
//   - PATCH /tickets/{id}            (status, priority, assignment, details)
//   - GET   /tickets/{id}/history    (audit trail)
//   - GET   /tickets/{id}/messages   (conversation)
//   - POST  /tickets/{id}/messages   (reply)
//
// Customers only ever list their own tickets; staff may list everyone's or
// filter by userId.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/services"
)

//
// DTOs
//

// CreateTicketRequest is the JSON payload for opening a ticket.
type CreateTicketRequest struct {
	// UserID is used only when the caller is anonymous.
	UserID      string   `json:"userId" binding:"max=64" example:"user123"`
	Title       string   `json:"title" binding:"required,max=255" example:"Inverter shows fault code F21"`
	Description string   `json:"description" binding:"required" example:"Since yesterday the inverter beeps every few minutes."`
	Category    string   `json:"category" binding:"max=64" example:"technical"`
	Priority    string   `json:"priority" binding:"omitempty,oneof=low medium high urgent" example:"high"`
	Files       []string `json:"files"`

	Email string `json:"email" binding:"omitempty,email" example:"jane@example.com"`
	Name  string `json:"name" binding:"max=255" example:"Jane Doe"`
	Phone string `json:"phone" binding:"max=32" example:"+5926001234"`
}

// UpdateTicketRequest is the JSON payload for a partial ticket update.
// An empty assignedTo unassigns the ticket.
type UpdateTicketRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	Category    *string `json:"category" binding:"omitempty,max=64"`
	Status      *string `json:"status" binding:"omitempty,oneof=open in_progress resolved closed" example:"in_progress"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo  *string `json:"assignedTo" binding:"omitempty,max=64" example:"agent7"`
}

// TicketMessageRequest is the JSON payload for replying on a ticket.
type TicketMessageRequest struct {
	// UserID is used only when the caller is anonymous.
	UserID  string   `json:"userId" binding:"max=64"`
	Message string   `json:"message" binding:"required,max=10000" example:"Could you send a photo of the display?"`
	Files   []string `json:"files"`
}

// ListTicketsResponse wraps a page of tickets and pagination information.
type ListTicketsResponse struct {
	Tickets    []domain.Ticket `json:"tickets"`
	Pagination Pagination      `json:"pagination"`
}

//
// Handlers
//

// CreateTicket godoc
// @ID          createTicket
// @Summary     Open a support ticket
// @Description Creates the ticket with its initial history entry and notifies the submitter and the admins.
// @Tags        Tickets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Caller id"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateTicketRequest  true  "Ticket"
//
// @Success     200  {object}  domain.Ticket
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tickets [post]
func (h *Handlers) CreateTicket(c *gin.Context) {
	if replayCreate(h, c, h.tickets.Get) {
		return
	}
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid ticket payload")
		return
	}
	uid := middleware.UserID(c)
	if uid == "" {
		uid = strings.TrimSpace(req.UserID)
	}
	t, err := h.tickets.Create(c.Request.Context(), services.NewTicket{
		UserID:      uid,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Files:       req.Files,
		Email:       req.Email,
		Name:        req.Name,
		Phone:       req.Phone,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.rememberCreate(c, t.ID, http.StatusOK)
	ok(c, http.StatusOK, t)
}

// ListTickets godoc
// @ID          listTickets
// @Summary     List tickets (paginated)
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Tickets
// @Produce     json
//
// @Param       X-User-ID      header  string  false "Caller id"
// @Param       X-User-Role    header  string  false "Caller role"  Enums(customer, agent, admin)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       userId         query   string  false "Only tickets of this user (staff)"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTicketsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tickets [get]
func (h *Handlers) ListTickets(c *gin.Context) {
	ctx := c.Request.Context()
	uid := strings.TrimSpace(c.Query("userId"))
	if caller := middleware.UserID(c); caller != "" && !middleware.IsStaff(c) {
		uid = caller
	}
	page, pageSize := clampPagination(c)

	if h.db != nil {
		if count, latest, err := repo.TicketsStats(ctx, h.db, uid); err == nil {
			if checkETag(c, "tickets", uid, count, latest) {
				return
			}
		}
	}

	items, total, err := h.tickets.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListTicketsResponse{Tickets: items, Pagination: newPagination(page, pageSize, total)})
}

// GetTicket godoc
// @ID          getTicket
// @Summary     Fetch a ticket
// @Tags        Tickets
// @Produce     json
// @Param       id  path  string  true  "Ticket ID"
// @Success     200  {object}  domain.Ticket
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Router      /tickets/{id} [get]
func (h *Handlers) GetTicket(c *gin.Context) {
	t, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, t)
}

// UpdateTicket godoc
// @ID          updateTicket
// @Summary     Update a ticket
// @Description Each kind of change is recorded in the ticket history; a status change notifies the submitter.
// @Tags        Tickets
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Caller id, recorded as the author"
// @Param       id         path    string  true  "Ticket ID"
// @Param       body       body    handlers.UpdateTicketRequest  true  "Changes"
// @Success     200  {object}  domain.Ticket
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Router      /tickets/{id} [patch]
func (h *Handlers) UpdateTicket(c *gin.Context) {
	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid ticket update")
		return
	}
	t, err := h.tickets.Update(c.Request.Context(), actor(c), c.Param("id"), services.TicketUpdate{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, t)
}

// TicketHistory godoc
// @ID          ticketHistory
// @Summary     Ticket history
// @Tags        Tickets
// @Produce     json
// @Param       id  path  string  true  "Ticket ID"
// @Success     200  {array}   domain.TicketHistory
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Router      /tickets/{id}/history [get]
func (h *Handlers) TicketHistory(c *gin.Context) {
	items, err := h.tickets.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// TicketMessages godoc
// @ID          ticketMessages
// @Summary     Ticket conversation
// @Tags        Tickets
// @Produce     json
// @Param       id  path  string  true  "Ticket ID"
// @Success     200  {array}   domain.TicketMessage
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Router      /tickets/{id}/messages [get]
func (h *Handlers) TicketMessages(c *gin.Context) {
	items, err := h.tickets.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// PostTicketMessage godoc
// @ID          postTicketMessage
// @Summary     Reply on a ticket
// @Description Staff callers are recorded as agents.
// @Tags        Tickets
// @Accept      json
// @Produce     json
// @Param       X-User-ID    header  string  false "Caller id"
// @Param       X-User-Role  header  string  false "Caller role"  Enums(customer, agent, admin)
// @Param       id           path    string  true  "Ticket ID"
// @Param       body         body    handlers.TicketMessageRequest  true  "Message"
// @Success     201  {object}  domain.TicketMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Router      /tickets/{id}/messages [post]
func (h *Handlers) PostTicketMessage(c *gin.Context) {
	var req TicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	uid := middleware.UserID(c)
	if uid == "" {
		uid = strings.TrimSpace(req.UserID)
	}
	m, err := h.tickets.AddMessage(c.Request.Context(), c.Param("id"), uid, req.Message, middleware.IsStaff(c), req.Files)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, m)
}
