package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

type stubPresence struct {
	n   int
	err error
}

func (s stubPresence) Count(context.Context) (int, error) { return s.n, s.err }

func TestUserService_CreateListRole(t *testing.T) {
	svc := NewUserService(newTestDB(t), nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, NewUser{Username: "kim", Email: " Kim@Example.com "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Role != domain.RoleCustomer || u.Email != "kim@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := svc.Create(ctx, NewUser{Username: "kim", Email: "other@example.com"}); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := svc.Create(ctx, NewUser{Username: "x", Email: "x@example.com", Role: "root"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role: got %v", err)
	}

	got, err := svc.UpdateRole(ctx, u.ID, "Agent")
	if err != nil || got.Role != domain.RoleAgent {
		t.Fatalf("UpdateRole: %+v err=%v", got, err)
	}
	if _, err := svc.UpdateRole(ctx, "missing", domain.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	agents, err := svc.List(ctx, domain.RoleAgent)
	if err != nil || len(agents) != 1 {
		t.Fatalf("agents = %d err=%v", len(agents), err)
	}
}

func TestUserService_AgentsOnline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	none, err := NewUserService(db, stubPresence{n: 0}).AgentsOnline(ctx)
	if err != nil || none.Available || none.Count != 0 {
		t.Fatalf("no staff: %+v err=%v", none, err)
	}

	mustUser(t, db, domain.User{Username: "a1", Email: "a1@example.com", Role: domain.RoleAgent})
	mustUser(t, db, domain.User{Username: "ad", Email: "ad@example.com", Role: domain.RoleAdmin})
	mustUser(t, db, domain.User{Username: "c", Email: "c@example.com"})

	got, err := NewUserService(db, stubPresence{n: 1}).AgentsOnline(ctx)
	if err != nil {
		t.Fatalf("AgentsOnline: %v", err)
	}
	if !got.Available || got.Count != 2 || got.Online != 1 {
		t.Fatalf("availability = %+v", got)
	}

	got, err = NewUserService(db, stubPresence{err: errors.New("redis down")}).AgentsOnline(ctx)
	if err != nil || got.Online != 0 || got.Count != 2 {
		t.Fatalf("presence failure: %+v err=%v", got, err)
	}
}
