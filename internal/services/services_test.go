package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/livechat"
	"github.com/tbourn/solar-support-backend/internal/notify"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func fixedClock(ts time.Time) func() time.Time { return func() time.Time { return ts } }

func mustUser(t *testing.T, db *gorm.DB, u domain.User) *domain.User {
	t.Helper()
	if err := repo.CreateUser(context.Background(), db, &u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return &u
}

func strPtr(s string) *string { return &s }

// recordingNotifier captures the notifications services raise.
type recordingNotifier struct {
	mu        sync.Mutex
	created   []notify.TicketCreated
	status    []notify.TicketStatusChanged
	callbacks []notify.CallbackRequested
	forms     []string
	transfers []string
}

func (r *recordingNotifier) NotifyTicketCreated(_ context.Context, ev notify.TicketCreated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, ev)
}

func (r *recordingNotifier) NotifyTicketStatus(_ context.Context, ev notify.TicketStatusChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, ev)
}

func (r *recordingNotifier) NotifyCallbackRequest(_ context.Context, ev notify.CallbackRequested) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, ev)
}

func (r *recordingNotifier) NotifySupportForm(_ context.Context, formID, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms = append(r.forms, formID)
}

func (r *recordingNotifier) NotifyTransferRequested(_ context.Context, toAgentID, transferID, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, toAgentID+"/"+transferID)
}

// recordingFanout captures published events.
type recordingFanout struct {
	mu  sync.Mutex
	err error
	got []published
}

type published struct {
	aud livechat.Audience
	ev  livechat.Event
}

func (f *recordingFanout) Publish(_ context.Context, a livechat.Audience, ev livechat.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, published{a, ev})
	return f.err
}

func (f *recordingFanout) events() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.got...)
}
