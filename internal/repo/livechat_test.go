package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

func TestSessions_MessagesAndFilters(t *testing.T) {
	db := newTestDB(t, &domain.LiveChatSession{}, &domain.LiveChatMessage{})
	ctx := context.Background()

	agent := "agent-1"
	s1 := &domain.LiveChatSession{GuestName: "Guest"}
	s2 := &domain.LiveChatSession{AssignedTo: &agent}
	for _, s := range []*domain.LiveChatSession{s1, s2} {
		if err := CreateSession(ctx, db, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	byAgent, err := ListSessions(ctx, db, SessionFilter{AgentID: agent})
	if err != nil || len(byAgent) != 1 || byAgent[0].ID != s2.ID {
		t.Fatalf("by agent unexpected: %+v err=%v", byAgent, err)
	}

	now := time.Now().UTC()
	if err := UpdateSession(ctx, db, s1.ID, map[string]any{"status": domain.SessionClosed, "closed_at": now}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	closed, err := ListSessions(ctx, db, SessionFilter{Status: domain.SessionClosed})
	if err != nil || len(closed) != 1 || closed[0].ClosedAt == nil {
		t.Fatalf("closed unexpected: %+v err=%v", closed, err)
	}

	sender := "u1"
	if err := CreateLiveChatMessage(ctx, db, &domain.LiveChatMessage{SessionID: s1.ID, SenderID: &sender, Message: "hi"}); err != nil {
		t.Fatalf("CreateLiveChatMessage: %v", err)
	}
	if err := CreateLiveChatMessage(ctx, db, &domain.LiveChatMessage{SessionID: "missing", Message: "x"}); err == nil {
		t.Fatalf("expected FK violation for unknown session")
	}
	msgs, err := ListLiveChatMessages(ctx, db, s1.ID, 0)
	if err != nil || len(msgs) != 1 || *msgs[0].SenderID != "u1" {
		t.Fatalf("messages unexpected: %+v err=%v", msgs, err)
	}
}

func TestTransfers_PendingAndAccept(t *testing.T) {
	db := newTestDB(t, &domain.LiveChatSession{}, &domain.AgentTransfer{})
	ctx := context.Background()

	s := &domain.LiveChatSession{}
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	tr := &domain.AgentTransfer{SessionID: s.ID, FromAgentID: "a1", ToAgentID: "a2", Reason: "billing"}
	if err := CreateTransfer(ctx, db, tr); err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	pending, err := ListPendingTransfers(ctx, db, "a2")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %+v err=%v", pending, err)
	}

	at := time.Now().UTC()
	if err := AcceptTransfer(ctx, db, tr.ID, at); err != nil {
		t.Fatalf("AcceptTransfer: %v", err)
	}
	if err := AcceptTransfer(ctx, db, tr.ID, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second accept should find nothing pending, got %v", err)
	}
	got, err := GetTransfer(ctx, db, tr.ID)
	if err != nil || got.Status != domain.TransferAccepted || got.AcceptedAt == nil {
		t.Fatalf("transfer unexpected: %+v err=%v", got, err)
	}
	pending, _ = ListPendingTransfers(ctx, db, "a2")
	if len(pending) != 0 {
		t.Fatalf("accepted transfer must leave the pending list")
	}
}
