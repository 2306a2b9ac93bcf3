// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// TicketsStats returns the number of tickets and the greatest UpdatedAt among
// them, optionally scoped to userID. maxUpdatedAt is nil when there are no rows.
func TicketsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Ticket{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	return latest(q)
}

// NotificationsStats returns the number of notifications of userID and the
// greatest UpdatedAt among them.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	return latest(q)
}

func latest(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
