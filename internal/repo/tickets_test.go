package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

func TestCreateTicket_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if err := CreateTicket(context.Background(), db, &domain.Ticket{UserID: "u1", Title: "t", Description: "d"}); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestTickets_CRUD_HistoryAndMessages(t *testing.T) {
	db := newTestDB(t, &domain.Ticket{}, &domain.TicketHistory{}, &domain.TicketMessage{})
	ctx := context.Background()

	tk := &domain.Ticket{UserID: "u1", Title: "Inverter", Description: "No output", Files: []string{"f1", "f2"}}
	if err := CreateTicket(ctx, db, tk); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.ID == "" || tk.CreatedAt.IsZero() {
		t.Fatalf("id/timestamps not assigned: %+v", tk)
	}

	got, err := GetTicket(ctx, db, tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Status != domain.TicketOpen || got.Priority != domain.PriorityMedium || len(got.Files) != 2 {
		t.Fatalf("defaults/files unexpected: %+v", got)
	}

	if _, err := GetTicket(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := UpdateTicket(ctx, db, tk.ID, map[string]any{"status": domain.TicketResolved}); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if err := UpdateTicket(ctx, db, "missing", map[string]any{"status": domain.TicketResolved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing update, got %v", err)
	}

	if _, err := CreateTicketHistory(ctx, db, tk.ID, "u1", domain.HistoryCreated, []byte(`{"title":"Inverter"}`)); err != nil {
		t.Fatalf("CreateTicketHistory: %v", err)
	}
	if _, err := CreateTicketHistory(ctx, db, "missing", "u1", domain.HistoryCreated, nil); err == nil {
		t.Fatalf("expected FK violation for history of missing ticket")
	}
	hist, err := ListTicketHistory(ctx, db, tk.ID)
	if err != nil || len(hist) != 1 || hist[0].Action != domain.HistoryCreated {
		t.Fatalf("history unexpected: %+v err=%v", hist, err)
	}

	for i, txt := range []string{"first", "second"} {
		m := &domain.TicketMessage{TicketID: tk.ID, UserID: "u1", Message: txt, CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)}
		if err := CreateTicketMessage(ctx, db, m); err != nil {
			t.Fatalf("CreateTicketMessage: %v", err)
		}
	}
	msgs, err := ListTicketMessages(ctx, db, tk.ID)
	if err != nil || len(msgs) != 2 || msgs[0].Message != "first" {
		t.Fatalf("messages unexpected: %+v err=%v", msgs, err)
	}
}

func TestListTickets_OrderFilterAndPaging(t *testing.T) {
	db := newTestDB(t, &domain.Ticket{})
	ctx := context.Background()
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	seed := []struct {
		id, user string
		at       time.Time
	}{
		{"a", "u1", t1},
		{"b", "u1", t1.Add(time.Hour)},
		{"c", "u2", t1.Add(2 * time.Hour)},
	}
	for _, s := range seed {
		if err := CreateTicket(ctx, db, &domain.Ticket{ID: s.id, UserID: s.user, Title: "t", Description: "d", CreatedAt: s.at}); err != nil {
			t.Fatalf("seed %s: %v", s.id, err)
		}
	}

	mine, err := ListTickets(ctx, db, "u1", 0, 0)
	if err != nil || len(mine) != 2 || mine[0].ID != "b" || mine[1].ID != "a" {
		t.Fatalf("ListTickets(u1) unexpected: %+v err=%v", mine, err)
	}
	page, err := ListTickets(ctx, db, "", 1, 1)
	if err != nil || len(page) != 1 || page[0].ID != "b" {
		t.Fatalf("paged list unexpected: %+v err=%v", page, err)
	}
	n, err := CountTickets(ctx, db, "u2")
	if err != nil || n != 1 {
		t.Fatalf("CountTickets = %d err=%v", n, err)
	}
}
