package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// NotificationService exposes a user's in-app inbox. Notifications are
// created by the notify dispatcher; this service only reads and flags them.
type NotificationService struct {
	DB *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// List returns the user's notifications newest first. Archived ones are
// included only when includeArchived is set.
func (s *NotificationService) List(ctx context.Context, userID string, includeArchived bool) ([]domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "List", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.ListNotifications(ctx, s.DB, userID, includeArchived)
}

// UnreadCount returns how many unread notifications the user has.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "UnreadCount", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.CountUnread(ctx, s.DB, userID)
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	return s.setStatus(ctx, "MarkRead", id, domain.NotificationRead)
}

// Archive hides one notification from the default listing.
func (s *NotificationService) Archive(ctx context.Context, id string) (*domain.Notification, error) {
	return s.setStatus(ctx, "Archive", id, domain.NotificationArchived)
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "MarkAllRead", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.MarkAllRead(ctx, s.DB, userID)
}

func (s *NotificationService) setStatus(ctx context.Context, op, id, status string) (*domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, op, trace.WithAttributes(attribute.String("notification.id", id)))
	defer span.End()

	if err := repo.SetNotificationStatus(ctx, s.DB, id, status); err != nil {
		return nil, mapNotFound(err, ErrNotificationNotFound)
	}
	n, err := repo.GetNotification(ctx, s.DB, id)
	return n, mapNotFound(err, ErrNotificationNotFound)
}
