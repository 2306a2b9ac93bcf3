package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound aliases gorm.ErrRecordNotFound so services can match it
	// without importing gorm.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate reports a unique constraint violation: a taken email or
	// page slug, or an idempotency key already recorded.
	ErrDuplicate = errors.New("duplicate")
)

// isUniqueViolation recognizes UNIQUE failures; glebarez/sqlite reports
// them as plain text rather than gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}
