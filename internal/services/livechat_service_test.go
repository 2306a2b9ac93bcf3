package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/livechat"
)

func TestLiveChatCreate_UserOrGuest(t *testing.T) {
	svc := NewLiveChatService(newTestDB(t), nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, NewSession{UserID: "u1", Page: "/services"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Status != domain.SessionActive || s.UserID == nil || *s.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", s)
	}
	g, err := svc.Create(ctx, NewSession{GuestName: "Visitor", GuestEmail: "v@example.com"})
	if err != nil || g.UserID != nil {
		t.Fatalf("guest session: %+v err=%v", g, err)
	}
	if _, err := svc.Create(ctx, NewSession{}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("anonymous: got %v", err)
	}
}

func TestLiveChatStore_AppendAndClose(t *testing.T) {
	svc := NewLiveChatService(newTestDB(t), nil)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(now)

	s, err := svc.Create(ctx, NewSession{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, err := svc.AppendMessage(ctx, s.ID, "u1", " hi ", false, nil)
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if m.Message != "hi" || m.SenderID == nil || *m.SenderID != "u1" || m.IsStaff {
		t.Fatalf("unexpected message: %+v", m)
	}
	if _, err := svc.AppendMessage(ctx, "missing", "u1", "x", false, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session: got %v", err)
	}
	if _, err := svc.AppendMessage(ctx, s.ID, "u1", " ", false, nil); !errors.Is(err, ErrMissingField) {
		t.Fatalf("blank message: got %v", err)
	}

	if err := svc.CloseSession(ctx, s.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	got, err := svc.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.SessionClosed || got.ClosedAt == nil || !got.ClosedAt.Equal(now) {
		t.Fatalf("closed session = %+v", got)
	}

	// Closed sessions still accept messages.
	if _, err := svc.AppendMessage(ctx, s.ID, "agent-1", "follow-up", true, nil); err != nil {
		t.Fatalf("append after close: %v", err)
	}
	msgs, err := svc.Messages(ctx, s.ID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("messages = %d err=%v", len(msgs), err)
	}
	if err := svc.CloseSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("close unknown: got %v", err)
	}
}

func TestLiveChatPost_RelaysToSession(t *testing.T) {
	fan := &recordingFanout{}
	svc := NewLiveChatService(newTestDB(t), fan)
	ctx := context.Background()

	s, err := svc.Create(ctx, NewSession{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, err := svc.Post(ctx, s.ID, "agent-1", "Dana", "hello from the desk", true, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	evs := fan.events()
	if len(evs) != 1 {
		t.Fatalf("published = %d; want 1", len(evs))
	}
	p := evs[0]
	if p.aud.Scope != livechat.ScopeSession || p.aud.SessionID != s.ID || p.aud.Except != "agent-1" {
		t.Fatalf("audience = %+v", p.aud)
	}
	if p.ev.Type != livechat.TypeMessage || p.ev.MessageID != m.ID || p.ev.Sender != "Dana" || !p.ev.IsAgent {
		t.Fatalf("event = %+v", p.ev)
	}
}

func TestLiveChatUpdate_CloseAssignAndList(t *testing.T) {
	fan := &recordingFanout{err: errors.New("redis down")}
	svc := NewLiveChatService(newTestDB(t), fan)
	ctx := context.Background()

	a, _ := svc.Create(ctx, NewSession{UserID: "u1"})
	if _, err := svc.Create(ctx, NewSession{UserID: "u2"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Update(ctx, a.ID, SessionUpdate{AssignedTo: strPtr("agent-1")})
	if err != nil || got.AssignedTo == nil || *got.AssignedTo != "agent-1" {
		t.Fatalf("assign: %+v err=%v", got, err)
	}
	mine, err := svc.List(ctx, "", "agent-1")
	if err != nil || len(mine) != 1 || mine[0].ID != a.ID {
		t.Fatalf("by agent = %+v err=%v", mine, err)
	}

	// A failing relay does not fail the close.
	got, err = svc.Update(ctx, a.ID, SessionUpdate{Status: strPtr(domain.SessionClosed)})
	if err != nil || got.Status != domain.SessionClosed || got.ClosedAt == nil {
		t.Fatalf("close: %+v err=%v", got, err)
	}
	evs := fan.events()
	if len(evs) != 1 || evs[0].ev.Type != livechat.EventSessionClosed || evs[0].aud.Except != "" {
		t.Fatalf("close events = %+v", evs)
	}

	active, err := svc.List(ctx, domain.SessionActive, "")
	if err != nil || len(active) != 1 {
		t.Fatalf("active = %d err=%v", len(active), err)
	}
	if _, err := svc.List(ctx, "waiting", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status filter: got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", SessionUpdate{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestTransfer_CreateNotifyAndAccept(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rec := &recordingNotifier{}
	fan := &recordingFanout{}
	chats := NewLiveChatService(db, nil)
	svc := NewTransferService(db, rec, fan)

	to := mustUser(t, db, domain.User{Username: "bo", Email: "bo@example.com", Role: domain.RoleAgent})
	s, err := chats.Create(ctx, NewSession{UserID: "u1"})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	tr, err := svc.Create(ctx, NewTransfer{SessionID: s.ID, FromAgentID: "agent-1", FromAgentName: "Dana", ToAgentID: to.ID, Reason: "billing"})
	if err != nil {
		t.Fatalf("Create transfer: %v", err)
	}
	if tr.Status != domain.TransferPending {
		t.Fatalf("status = %q", tr.Status)
	}
	if len(rec.transfers) != 1 || rec.transfers[0] != to.ID+"/"+tr.ID {
		t.Fatalf("transfer notifications = %v", rec.transfers)
	}
	evs := fan.events()
	if len(evs) != 1 || evs[0].aud.Scope != livechat.ScopeUser || evs[0].aud.UserID != to.ID || evs[0].ev.TransferID != tr.ID {
		t.Fatalf("transfer push = %+v", evs)
	}

	pending, err := svc.Pending(ctx, to.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d err=%v", len(pending), err)
	}

	acc, err := svc.Accept(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if acc.Status != domain.TransferAccepted || acc.AcceptedAt == nil {
		t.Fatalf("accepted = %+v", acc)
	}
	sess, err := chats.Get(ctx, s.ID)
	if err != nil || sess.AssignedTo == nil || *sess.AssignedTo != to.ID {
		t.Fatalf("session not reassigned: %+v err=%v", sess, err)
	}
	if _, err := svc.Accept(ctx, tr.ID); !errors.Is(err, ErrTransferNotPending) {
		t.Fatalf("double accept: got %v", err)
	}
	if _, err := svc.Accept(ctx, "missing"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestTransfer_Validation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewTransferService(db, nil, nil)
	cust := mustUser(t, db, domain.User{Username: "cu", Email: "cu@example.com"})
	s, _ := NewLiveChatService(db, nil).Create(ctx, NewSession{UserID: "u1"})

	if _, err := svc.Create(ctx, NewTransfer{SessionID: s.ID, FromAgentID: "a"}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("missing target: got %v", err)
	}
	if _, err := svc.Create(ctx, NewTransfer{SessionID: "missing", FromAgentID: "a", ToAgentID: "b"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session: got %v", err)
	}
	if _, err := svc.Create(ctx, NewTransfer{SessionID: s.ID, FromAgentID: "a", ToAgentID: cust.ID}); !errors.Is(err, ErrNotStaff) {
		t.Fatalf("customer target: got %v", err)
	}
	// Unknown target ids are accepted; agents may not have user records.
	if _, err := svc.Create(ctx, NewTransfer{SessionID: s.ID, FromAgentID: "a", ToAgentID: "agent-x"}); err != nil {
		t.Fatalf("unknown agent: %v", err)
	}
}
