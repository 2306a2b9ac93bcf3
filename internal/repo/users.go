// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateUser inserts u. A taken username or email yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUser fetches a user by id or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users ordered by username, optionally filtered by role.
func ListUsers(ctx context.Context, db *gorm.DB, role string) ([]domain.User, error) {
	var out []domain.User
	q := db.WithContext(ctx).Order("username ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateUserRole changes the role of a user.
func UpdateUserRole(ctx context.Context, db *gorm.DB, id, role string) error {
	return updateByID(ctx, db, &domain.User{}, id, map[string]any{"role": role})
}

// CountStaff returns how many users hold the agent or admin role.
func CountStaff(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("role IN ?", []string{domain.RoleAgent, domain.RoleAdmin}).
		Count(&n).Error
	return n, err
}
