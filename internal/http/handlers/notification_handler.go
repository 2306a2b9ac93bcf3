// Notification HTTP handlers.
//
// This file exposes the in-app inbox:
//   - GET   /notifications/{id}                (list for user {id}, ETag support)
//   - GET   /notifications/{id}/unread-count   (badge counter for user {id})
//   - PATCH /notifications/{id}/read           (mark notification {id} read)
//   - PATCH /notifications/{id}/archive        (archive notification {id})
//   - PATCH /notifications/{id}/read-all       (mark all of user {id} read)
//
// The router requires one wildcard name per segment, so {id} is a user id
// on the collection routes and a notification id on the item routes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/utils"
)

// UnreadCountResponse is the answer of the unread counter.
type UnreadCountResponse struct {
	Count int64 `json:"count" example:"3"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated" example:"3"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List a user's notifications
// @Description Newest first; archived ones only with includeArchived=true. Supports weak ETag via If-None-Match.
// @Tags        Notifications
// @Produce     json
// @Param       id               path   string  true  "User ID"
// @Param       includeArchived  query  bool    false "Include archived notifications"
// @Param       If-None-Match    header string  false "Return 304 if ETag matches"
// @Success     200  {array}   domain.Notification
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /notifications/{id} [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")
	archived := utils.BoolOr(c.Query("includeArchived"), false)

	if h.db != nil {
		if count, latest, err := repo.NotificationsStats(ctx, h.db, userID); err == nil {
			scope := userID
			if archived {
				scope += "+archived"
			}
			if checkETag(c, "notifications", scope, count, latest) {
				return
			}
		}
	}

	items, err := h.notifications.List(ctx, userID, archived)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// UnreadCount godoc
// @ID          unreadCount
// @Summary     Count unread notifications
// @Tags        Notifications
// @Produce     json
// @Param       id  path  string  true  "User ID"
// @Success     200  {object}  handlers.UnreadCountResponse
// @Router      /notifications/{id}/unread-count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Count: n})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Tags        Notifications
// @Produce     json
// @Param       id  path  string  true  "Notification ID"
// @Success     200  {object}  domain.Notification
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /notifications/{id}/read [patch]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	n, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, n)
}

// ArchiveNotification godoc
// @ID          archiveNotification
// @Summary     Archive a notification
// @Tags        Notifications
// @Produce     json
// @Param       id  path  string  true  "Notification ID"
// @Success     200  {object}  domain.Notification
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /notifications/{id}/archive [patch]
func (h *Handlers) ArchiveNotification(c *gin.Context) {
	n, err := h.notifications.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, n)
}

// MarkAllNotificationsRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark all of a user's notifications read
// @Tags        Notifications
// @Produce     json
// @Param       id  path  string  true  "User ID"
// @Success     200  {object}  handlers.MarkAllReadResponse
// @Router      /notifications/{id}/read-all [patch]
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, MarkAllReadResponse{Updated: n})
}
