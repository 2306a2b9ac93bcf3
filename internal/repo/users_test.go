package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

func TestUsers_CreateDuplicateRoleAndStaffCount(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u := &domain.User{Username: "ann", Email: "ann@example.com"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != domain.RoleCustomer {
		t.Fatalf("default role = %q", u.Role)
	}
	if err := CreateUser(ctx, db, &domain.User{Username: "ann", Email: "x@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	n, err := CountStaff(ctx, db)
	if err != nil || n != 0 {
		t.Fatalf("CountStaff = %d err=%v", n, err)
	}
	if err := UpdateUserRole(ctx, db, u.ID, domain.RoleAgent); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if err := UpdateUserRole(ctx, db, "missing", domain.RoleAgent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, err = CountStaff(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("CountStaff after promotion = %d err=%v", n, err)
	}

	agents, err := ListUsers(ctx, db, domain.RoleAgent)
	if err != nil || len(agents) != 1 || agents[0].ID != u.ID {
		t.Fatalf("ListUsers(agent) unexpected: %+v err=%v", agents, err)
	}
	got, err := GetUser(ctx, db, u.ID)
	if err != nil || got.Email != "ann@example.com" {
		t.Fatalf("GetUser unexpected: %+v err=%v", got, err)
	}
}
