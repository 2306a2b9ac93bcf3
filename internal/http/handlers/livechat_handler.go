// Live chat HTTP handlers.
//
// This file exposes the REST side of live chat. Real-time delivery happens
// over the websocket at /ws; messages and closes made here are relayed to
// the connected participants as well.
//   - POST  /live-chat/sessions                 (start a session; idempotent)
//   - GET   /live-chat/sessions                 (list, ?status=&agentId=)
//   - GET   /live-chat/sessions/{id}
//   - PATCH /live-chat/sessions/{id}            (assign, close)
//   - GET   /live-chat/sessions/{id}/messages   (full log)
//   - POST  /live-chat/sessions/{id}/messages   (send)
//   - POST  /transfers                          (hand a session to another agent)
//   - GET   /transfers                          (pending for ?agentId=, default caller)
//   - GET   /transfers/{id}
//   - PATCH /transfers/{id}/accept
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/services"
)

//
// DTOs
//

// CreateSessionRequest is the JSON payload for starting a live chat.
// Either an identified caller (or userId) or guestName is required.
type CreateSessionRequest struct {
	UserID     string `json:"userId" binding:"max=64"`
	GuestName  string `json:"guestName" binding:"max=255" example:"Jane"`
	GuestEmail string `json:"guestEmail" binding:"omitempty,email" example:"jane@example.com"`
	Page       string `json:"page" binding:"max=255" example:"/services"`
}

// UpdateSessionRequest is the JSON payload for a partial session update.
type UpdateSessionRequest struct {
	Status     *string `json:"status" binding:"omitempty,oneof=active closed" example:"closed"`
	AssignedTo *string `json:"assignedTo" binding:"omitempty,max=64" example:"agent7"`
}

// SessionMessageRequest is the JSON payload for posting into a session.
type SessionMessageRequest struct {
	SenderID   string   `json:"senderId" binding:"max=64"`
	SenderName string   `json:"senderName" binding:"max=255" example:"Jane"`
	Message    string   `json:"message" binding:"max=10000" example:"Is anyone there?"`
	Files      []string `json:"files"`
}

// CreateTransferRequest is the JSON payload of POST /transfers.
type CreateTransferRequest struct {
	SessionID     string `json:"sessionId" binding:"required,max=64"`
	FromAgentID   string `json:"fromAgentId" binding:"max=64"`
	FromAgentName string `json:"fromAgentName" binding:"max=255" example:"Sam"`
	ToAgentID     string `json:"toAgentId" binding:"required,max=64" example:"agent9"`
	Reason        string `json:"reason" binding:"max=2000" example:"Billing question"`
}

//
// Session handlers
//

// CreateSession godoc
// @ID          createLiveChatSession
// @Summary     Start a live chat session
// @Tags        LiveChat
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "Caller id"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateSessionRequest  true  "Session"
// @Success     201  {object}  domain.LiveChatSession
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /live-chat/sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	if replayCreate(h, c, h.livechat.Get) {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid session payload")
		return
	}
	uid := middleware.UserID(c)
	if uid == "" {
		uid = strings.TrimSpace(req.UserID)
	}
	s, err := h.livechat.Create(c.Request.Context(), services.NewSession{
		UserID:     uid,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Page:       req.Page,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.rememberCreate(c, s.ID, http.StatusCreated)
	ok(c, http.StatusCreated, s)
}

// ListSessions godoc
// @ID          listLiveChatSessions
// @Summary     List live chat sessions
// @Tags        LiveChat
// @Produce     json
// @Param       status   query  string  false "Filter by status"  Enums(active, closed)
// @Param       agentId  query  string  false "Only sessions assigned to this agent"
// @Success     200  {array}   domain.LiveChatSession
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Router      /live-chat/sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	items, err := h.livechat.List(c.Request.Context(), strings.TrimSpace(c.Query("status")), strings.TrimSpace(c.Query("agentId")))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetSession godoc
// @ID          getLiveChatSession
// @Summary     Fetch a live chat session
// @Tags        LiveChat
// @Produce     json
// @Param       id  path  string  true  "Session ID"
// @Success     200  {object}  domain.LiveChatSession
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /live-chat/sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.livechat.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSession godoc
// @ID          updateLiveChatSession
// @Summary     Assign or close a live chat session
// @Description Closing stamps closed_at and tells the connected participants.
// @Tags        LiveChat
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Session ID"
// @Param       body  body  handlers.UpdateSessionRequest  true  "Changes"
// @Success     200  {object}  domain.LiveChatSession
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /live-chat/sessions/{id} [patch]
func (h *Handlers) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid session update")
		return
	}
	s, err := h.livechat.Update(c.Request.Context(), c.Param("id"), services.SessionUpdate{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, s)
}

// SessionMessages godoc
// @ID          liveChatMessages
// @Summary     Session message log
// @Tags        LiveChat
// @Produce     json
// @Param       id  path  string  true  "Session ID"
// @Success     200  {array}   domain.LiveChatMessage
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /live-chat/sessions/{id}/messages [get]
func (h *Handlers) SessionMessages(c *gin.Context) {
	items, err := h.livechat.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// PostSessionMessage godoc
// @ID          postLiveChatMessage
// @Summary     Send a message into a session
// @Description Stored and relayed to every other connected participant. Staff callers are flagged as staff.
// @Tags        LiveChat
// @Accept      json
// @Produce     json
// @Param       X-User-ID    header  string  false "Caller id"
// @Param       X-User-Role  header  string  false "Caller role"  Enums(customer, agent, admin)
// @Param       id           path    string  true  "Session ID"
// @Param       body         body    handlers.SessionMessageRequest  true  "Message"
// @Success     201  {object}  domain.LiveChatMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /live-chat/sessions/{id}/messages [post]
func (h *Handlers) PostSessionMessage(c *gin.Context) {
	var req SessionMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message payload")
		return
	}
	sender := middleware.UserID(c)
	if sender == "" {
		sender = strings.TrimSpace(req.SenderID)
	}
	m, err := h.livechat.Post(c.Request.Context(), c.Param("id"), sender, req.SenderName, req.Message, middleware.IsStaff(c), req.Files)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, m)
}

//
// Transfer handlers
//

// CreateTransfer godoc
// @ID          createTransfer
// @Summary     Transfer a session to another agent
// @Description Records a pending transfer, notifies the target in-app and pushes a request to their socket when connected. Pending transfers never expire.
// @Tags        Transfers
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  true  "Transferring agent"
// @Param       X-User-Role      header  string  true  "Caller role"  Enums(agent, admin)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateTransferRequest  true  "Transfer"
// @Success     201  {object}  domain.AgentTransfer
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Staff only"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /transfers [post]
func (h *Handlers) CreateTransfer(c *gin.Context) {
	if replayCreate(h, c, h.transfers.Get) {
		return
	}
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and toAgentId are required")
		return
	}
	from := middleware.UserID(c)
	if from == "" {
		from = strings.TrimSpace(req.FromAgentID)
	}
	t, err := h.transfers.Create(c.Request.Context(), services.NewTransfer{
		SessionID:     req.SessionID,
		FromAgentID:   from,
		FromAgentName: req.FromAgentName,
		ToAgentID:     req.ToAgentID,
		Reason:        req.Reason,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.rememberCreate(c, t.ID, http.StatusCreated)
	ok(c, http.StatusCreated, t)
}

// PendingTransfers godoc
// @ID          pendingTransfers
// @Summary     Pending transfers for an agent
// @Tags        Transfers
// @Produce     json
// @Param       X-User-ID  header  string  false "Caller id, used when agentId is absent"
// @Param       agentId    query   string  false "Target agent"
// @Success     200  {array}   domain.AgentTransfer
// @Failure     400  {object}  handlers.ErrorResponse  "Missing agent"
// @Router      /transfers [get]
func (h *Handlers) PendingTransfers(c *gin.Context) {
	agent := strings.TrimSpace(c.Query("agentId"))
	if agent == "" {
		agent = middleware.UserID(c)
	}
	items, err := h.transfers.Pending(c.Request.Context(), agent)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetTransfer godoc
// @ID          getTransfer
// @Summary     Fetch a transfer
// @Tags        Transfers
// @Produce     json
// @Param       id  path  string  true  "Transfer ID"
// @Success     200  {object}  domain.AgentTransfer
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /transfers/{id} [get]
func (h *Handlers) GetTransfer(c *gin.Context) {
	t, err := h.transfers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, t)
}

// AcceptTransfer godoc
// @ID          acceptTransfer
// @Summary     Accept a pending transfer
// @Description Marks the transfer accepted and assigns the session to the target agent in one transaction.
// @Tags        Transfers
// @Produce     json
// @Param       X-User-ID    header  string  true  "Accepting agent"
// @Param       X-User-Role  header  string  true  "Caller role"  Enums(agent, admin)
// @Param       id           path    string  true  "Transfer ID"
// @Success     200  {object}  domain.AgentTransfer
// @Failure     403  {object}  handlers.ErrorResponse  "Staff only"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not pending"
// @Router      /transfers/{id}/accept [patch]
func (h *Handlers) AcceptTransfer(c *gin.Context) {
	t, err := h.transfers.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, t)
}
