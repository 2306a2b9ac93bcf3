// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for in-app
// notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateNotification inserts an unread notification.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = domain.NotificationUnread
	}
	if n.Type == "" {
		n.Type = "info"
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	return db.WithContext(ctx).Create(n).Error
}

// GetNotification fetches a notification by id or returns ErrNotFound.
func GetNotification(ctx context.Context, db *gorm.DB, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns a user's notifications, newest first. Archived
// rows are excluded unless includeArchived is set.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, includeArchived bool) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("status <> ?", domain.NotificationArchived)
	}
	err := q.Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

// CountUnread returns the number of unread notifications of a user.
func CountUnread(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND status = ?", userID, domain.NotificationUnread).
		Count(&n).Error
	return n, err
}

// SetNotificationStatus updates the status of one notification.
func SetNotificationStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return updateByID(ctx, db, &domain.Notification{}, id, map[string]any{"status": status})
}

// MarkAllRead flips every unread notification of userID to read and returns
// the number of affected rows.
func MarkAllRead(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND status = ?", userID, domain.NotificationUnread).
		Updates(map[string]any{"status": domain.NotificationRead})
	return res.RowsAffected, res.Error
}
