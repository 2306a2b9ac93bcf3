// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for callback
// requests and support forms.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateCallback inserts a pending callback request.
func CreateCallback(ctx context.Context, db *gorm.DB, cb *domain.CallbackRequest) error {
	if cb.ID == "" {
		cb.ID = uuid.NewString()
	}
	if cb.Status == "" {
		cb.Status = domain.CallbackPending
	}
	now := time.Now().UTC()
	cb.CreatedAt, cb.UpdatedAt = now, now
	return db.WithContext(ctx).Create(cb).Error
}

// GetCallback fetches a callback request by id or returns ErrNotFound.
func GetCallback(ctx context.Context, db *gorm.DB, id string) (*domain.CallbackRequest, error) {
	var cb domain.CallbackRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&cb).Error; err != nil {
		return nil, err
	}
	return &cb, nil
}

// ListCallbacks returns callback requests newest first, optionally filtered by status.
func ListCallbacks(ctx context.Context, db *gorm.DB, status string) ([]domain.CallbackRequest, error) {
	var out []domain.CallbackRequest
	q := db.WithContext(ctx).Order("created_at desc, id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateCallback applies column updates to a callback request.
func UpdateCallback(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.CallbackRequest{}, id, updates)
}

// CreateSupportForm inserts a new support form submission.
func CreateSupportForm(ctx context.Context, db *gorm.DB, f *domain.SupportForm) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = domain.FormNew
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	return db.WithContext(ctx).Create(f).Error
}

// GetSupportForm fetches a support form by id or returns ErrNotFound.
func GetSupportForm(ctx context.Context, db *gorm.DB, id string) (*domain.SupportForm, error) {
	var f domain.SupportForm
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListSupportForms returns support forms newest first, optionally filtered by status.
func ListSupportForms(ctx context.Context, db *gorm.DB, status string) ([]domain.SupportForm, error) {
	var out []domain.SupportForm
	q := db.WithContext(ctx).Order("created_at desc, id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateSupportForm applies column updates to a support form.
func UpdateSupportForm(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.SupportForm{}, id, updates)
}
