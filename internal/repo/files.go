// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for file upload
// metadata.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateFileUpload inserts upload metadata. The caller assigns the id so it
// can match the stored file name.
func CreateFileUpload(ctx context.Context, db *gorm.DB, f *domain.FileUpload) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(f).Error
}

// GetFileUpload fetches upload metadata by id or returns ErrNotFound.
func GetFileUpload(ctx context.Context, db *gorm.DB, id string) (*domain.FileUpload, error) {
	var f domain.FileUpload
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFilesByRelated returns the uploads attached to one entity, oldest first.
func ListFilesByRelated(ctx context.Context, db *gorm.DB, relatedType, relatedID string) ([]domain.FileUpload, error) {
	var out []domain.FileUpload
	err := db.WithContext(ctx).
		Where("related_type = ? AND related_id = ?", relatedType, relatedID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// DeleteFileUpload removes upload metadata.
func DeleteFileUpload(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.FileUpload{}, id)
}
