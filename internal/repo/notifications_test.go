package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

func TestNotifications_Lifecycle(t *testing.T) {
	db := newTestDB(t, &domain.Notification{})
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		n := &domain.Notification{UserID: "u1", Title: title, Message: "m"}
		if err := CreateNotification(ctx, db, n); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if err := CreateNotification(ctx, db, &domain.Notification{UserID: "admin", Title: "x", Message: "m"}); err != nil {
		t.Fatalf("CreateNotification(admin): %v", err)
	}

	unread, err := CountUnread(ctx, db, "u1")
	if err != nil || unread != 3 {
		t.Fatalf("CountUnread = %d err=%v", unread, err)
	}

	if err := SetNotificationStatus(ctx, db, ids[0], domain.NotificationRead); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := SetNotificationStatus(ctx, db, "missing", domain.NotificationRead); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SetNotificationStatus(ctx, db, ids[1], domain.NotificationArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	visible, err := ListNotifications(ctx, db, "u1", false)
	if err != nil || len(visible) != 2 {
		t.Fatalf("visible = %d err=%v", len(visible), err)
	}
	all, err := ListNotifications(ctx, db, "u1", true)
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d err=%v", len(all), err)
	}

	n, err := MarkAllRead(ctx, db, "u1")
	if err != nil || n != 1 {
		t.Fatalf("MarkAllRead = %d err=%v", n, err)
	}
	unread, _ = CountUnread(ctx, db, "u1")
	if unread != 0 {
		t.Fatalf("unread after MarkAllRead = %d", unread)
	}
	adminUnread, _ := CountUnread(ctx, db, "admin")
	if adminUnread != 1 {
		t.Fatalf("other recipients must be untouched, got %d", adminUnread)
	}
}
