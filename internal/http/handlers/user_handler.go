// User HTTP handlers.
//
// This file exposes user management and agent availability:
//   - GET   /users             (?role=)
//   - POST  /users
//   - PATCH /users/{id}/role   (admin only)
//   - GET   /agents/online     ({available, count, online})
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/services"
)

// CreateUserRequest is the JSON payload of POST /users.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,max=64" example:"jdoe"`
	Email    string `json:"email" binding:"required,email" example:"jane@example.com"`
	FullName string `json:"fullName" binding:"max=255" example:"Jane Doe"`
	Phone    string `json:"phone" binding:"max=32"`
	Role     string `json:"role" binding:"omitempty,oneof=customer agent admin" example:"customer"`
}

// UpdateRoleRequest is the JSON payload of PATCH /users/{id}/role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=customer agent admin" example:"agent"`
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Tags        Users
// @Produce     json
// @Param       role  query  string  false "Filter by role"  Enums(customer, agent, admin)
// @Success     200  {array}   domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid role"
// @Failure     403  {object}  handlers.ErrorResponse  "Staff only"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	items, err := h.users.List(c.Request.Context(), strings.ToLower(strings.TrimSpace(c.Query("role"))))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Register a user
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateUserRequest  true  "User"
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse  "Username or email taken"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and a valid email are required")
		return
	}
	u, err := h.users.Create(c.Request.Context(), services.NewUser{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, u)
}

// UpdateUserRole godoc
// @ID          updateUserRole
// @Summary     Change a user's role
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       X-User-ID    header  string  true  "Admin id"
// @Param       X-User-Role  header  string  true  "Caller role"  Enums(admin)
// @Param       id           path    string  true  "User ID"
// @Param       body         body    handlers.UpdateRoleRequest  true  "Role"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid role"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /users/{id}/role [patch]
func (h *Handlers) UpdateUserRole(c *gin.Context) {
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be customer, agent or admin")
		return
	}
	u, err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, u)
}

// AgentsOnline godoc
// @ID          agentsOnline
// @Summary     Is live support available?
// @Description available is true when any agent or admin account exists; online is the number of staff connected to live chat.
// @Tags        Users
// @Produce     json
// @Success     200  {object}  services.AgentAvailability
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /agents/online [get]
func (h *Handlers) AgentsOnline(c *gin.Context) {
	a, err := h.users.AgentsOnline(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, a)
}
