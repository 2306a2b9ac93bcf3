// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for pages, page
// sections and FAQs.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreatePage inserts p. A taken slug yields ErrDuplicate.
func CreatePage(ctx context.Context, db *gorm.DB, p *domain.Page) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPage fetches a page by slug, falling back to its id.
func GetPage(ctx context.Context, db *gorm.DB, slugOrID string) (*domain.Page, error) {
	var p domain.Page
	err := db.WithContext(ctx).Where("slug = ?", slugOrID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.WithContext(ctx).Where("id = ?", slugOrID).First(&p).Error
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPages returns pages ordered by title; publishedOnly hides drafts.
func ListPages(ctx context.Context, db *gorm.DB, publishedOnly bool) ([]domain.Page, error) {
	var out []domain.Page
	q := db.WithContext(ctx).Order("title ASC")
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdatePage applies column updates to a page. A slug collision yields ErrDuplicate.
func UpdatePage(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	err := updateByID(ctx, db, &domain.Page{}, id, updates)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeletePage removes a page; its sections cascade.
func DeletePage(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.Page{}, id)
}

// CreatePageSection inserts a section for an existing page.
func CreatePageSection(ctx context.Context, db *gorm.DB, s *domain.PageSection) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return db.WithContext(ctx).Create(s).Error
}

// GetPageSection fetches a section by id or returns ErrNotFound.
func GetPageSection(ctx context.Context, db *gorm.DB, id string) (*domain.PageSection, error) {
	var s domain.PageSection
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListPageSections returns the sections of a page in display order.
func ListPageSections(ctx context.Context, db *gorm.DB, pageID string, visibleOnly bool) ([]domain.PageSection, error) {
	var out []domain.PageSection
	q := db.WithContext(ctx).Where("page_id = ?", pageID).Order("sort_order ASC, created_at ASC")
	if visibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdatePageSection applies column updates to a section.
func UpdatePageSection(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.PageSection{}, id, updates)
}

// DeletePageSection removes a section.
func DeletePageSection(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.PageSection{}, id)
}

// FAQFilter narrows ListFAQs. Zero fields are ignored.
type FAQFilter struct {
	Category      string
	Page          string
	PublishedOnly bool
}

// CreateFAQ inserts an FAQ entry.
func CreateFAQ(ctx context.Context, db *gorm.DB, f *domain.FAQ) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	return db.WithContext(ctx).Create(f).Error
}

// GetFAQ fetches an FAQ entry by id or returns ErrNotFound.
func GetFAQ(ctx context.Context, db *gorm.DB, id string) (*domain.FAQ, error) {
	var f domain.FAQ
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFAQs returns FAQ entries in display order.
func ListFAQs(ctx context.Context, db *gorm.DB, f FAQFilter) ([]domain.FAQ, error) {
	var out []domain.FAQ
	q := db.WithContext(ctx).Order("sort_order ASC, created_at ASC")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Page != "" {
		q = q.Where("page = ?", f.Page)
	}
	if f.PublishedOnly {
		q = q.Where("is_published = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateFAQ applies column updates to an FAQ entry.
func UpdateFAQ(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.FAQ{}, id, updates)
}

// DeleteFAQ removes an FAQ entry.
func DeleteFAQ(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.FAQ{}, id)
}
