package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// IdempotencyKey identifies one retried create: who sent it, which route
// it targeted and the client-chosen key.
type IdempotencyKey struct {
	Caller string
	Scope  string
	Key    string
}

func (k IdempotencyKey) valid() bool {
	return strings.TrimSpace(k.Caller) != "" && strings.TrimSpace(k.Scope) != "" && strings.TrimSpace(k.Key) != ""
}

// FindIdempotency returns the unexpired record of k, or ErrNotFound.
func FindIdempotency(ctx context.Context, db *gorm.DB, k IdempotencyKey, now time.Time) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", k.Caller, k.Scope, k.Key, now.UTC()).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records that k created resourceID with status, for ttl.
// A second save of the same k returns ErrDuplicate.
func SaveIdempotency(ctx context.Context, db *gorm.DB, k IdempotencyKey, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, errors.New("idempotency key incomplete")
	}
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     k.Caller,
		Scope:      k.Scope,
		Key:        k.Key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records expired at now and returns how
// many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
