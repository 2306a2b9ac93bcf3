package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func allModels() []any {
	return []any{
		&User{}, &Ticket{}, &TicketHistory{}, &TicketMessage{}, &Notification{},
		&CallbackRequest{}, &SupportForm{}, &LiveChatSession{}, &LiveChatMessage{},
		&AgentTransfer{}, &FileUpload{}, &Page{}, &PageSection{}, &FAQ{},
	}
}

func TestTableNames(t *testing.T) {
	want := map[string]string{
		(User{}).TableName():            "users",
		(Ticket{}).TableName():          "tickets",
		(TicketHistory{}).TableName():   "ticket_history",
		(TicketMessage{}).TableName():   "chat_messages",
		(Notification{}).TableName():    "notifications",
		(CallbackRequest{}).TableName(): "callback_requests",
		(LiveChatSession{}).TableName(): "live_chat_sessions",
		(LiveChatMessage{}).TableName(): "live_chat_messages",
		(AgentTransfer{}).TableName():   "agent_transfers",
		(FileUpload{}).TableName():      "file_uploads",
		(Page{}).TableName():            "pages",
		(PageSection{}).TableName():     "page_sections",
		(FAQ{}).TableName():             "faqs",
		(SupportForm{}).TableName():     "support_forms",
	}
	for got, exp := range want {
		if got != exp {
			t.Fatalf("TableName() = %q; want %q", got, exp)
		}
	}
}

func TestEnumHelpers(t *testing.T) {
	if !ValidTicketStatus(TicketInProgress) || ValidTicketStatus("pending") {
		t.Fatalf("ValidTicketStatus unexpected")
	}
	if !ValidTicketPriority(PriorityUrgent) || ValidTicketPriority("critical") {
		t.Fatalf("ValidTicketPriority unexpected")
	}
	if !IsStaffRole(RoleAgent) || !IsStaffRole(RoleAdmin) || IsStaffRole(RoleCustomer) {
		t.Fatalf("IsStaffRole unexpected")
	}
	if !ValidRole(RoleCustomer) || ValidRole("root") {
		t.Fatalf("ValidRole unexpected")
	}
	if !ValidCallbackStatus(CallbackCancelled) || ValidCallbackStatus("done") {
		t.Fatalf("ValidCallbackStatus unexpected")
	}
	if !ValidSessionStatus(SessionClosed) || ValidSessionStatus("waiting") {
		t.Fatalf("ValidSessionStatus unexpected")
	}
	if !ValidFormStatus(FormResponded) || ValidFormStatus("open") {
		t.Fatalf("ValidFormStatus unexpected")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range allModels() {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&LiveChatMessage{}, "idx_session_msgs") {
		t.Fatalf("expected index idx_session_msgs on live_chat_messages")
	}
	if !m.HasIndex(&Ticket{}, "idx_user_tickets") {
		t.Fatalf("expected index idx_user_tickets on tickets")
	}

	now := time.Now().UTC()
	s := &LiveChatSession{ID: "s1", Status: SessionActive, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	msg := &LiveChatMessage{ID: "m1", SessionID: "s1", Message: "hello", Files: []string{"f1"}, CreatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	// A message can never reference a missing session.
	orphan := &LiveChatMessage{ID: "m2", SessionID: "nope", Message: "x", CreatedAt: now}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected FK violation for orphan live chat message")
	}

	var got LiveChatMessage
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if len(got.Files) != 1 || got.Files[0] != "f1" {
		t.Fatalf("files json roundtrip unexpected: %#v", got.Files)
	}

	if err := db.Delete(&LiveChatSession{}, "id = ?", "s1").Error; err != nil {
		t.Fatalf("delete session: %v", err)
	}
	var cnt int64
	if err := db.Model(&LiveChatMessage{}).Where("session_id = ?", "s1").Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete with session, got %d", cnt)
	}
}

func TestUser_RoleCheckConstraint(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	ok := &User{ID: "u1", Username: "ann", Email: "ann@example.com", Role: RoleAgent}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("insert agent: %v", err)
	}
	bad := &User{ID: "u2", Username: "bob", Email: "bob@example.com", Role: "root"}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check constraint violation for unknown role")
	}
	dup := &User{ID: "u3", Username: "ann", Email: "other@example.com", Role: RoleCustomer}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on username")
	}
}
