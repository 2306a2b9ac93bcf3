package domain

import (
	"testing"
	"time"
)

func TestIdempotency_Schema(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("missing unique index ux_user_scope_key")
	}
	if !m.HasIndex(&Idempotency{}, "ExpiresAt") {
		t.Fatalf("missing expires_at index used by the purge job")
	}

	now := time.Now().UTC()
	rec := Idempotency{
		ID:         "i-1",
		UserID:     "user:cust-1",
		Scope:      "POST /api/tickets",
		Key:        "submit-1",
		ResourceID: "t-1",
		Status:     200,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt must be set on insert")
	}

	// The same key may be reused on another route or by another caller.
	other := rec
	other.ID, other.Scope, other.ResourceID = "i-2", "POST /api/callbacks", "cb-1"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key, other scope: %v", err)
	}
	other.ID, other.Scope, other.UserID = "i-3", rec.Scope, "anonymous:198.51.100.4"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key, other caller: %v", err)
	}

	dup := rec
	dup.ID, dup.ResourceID = "i-4", "t-2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, scope, key)")
	}

	for _, col := range []string{"user_id", "scope", "key", "resource_id", "status", "expires_at"} {
		err := db.Exec(`INSERT INTO idempotency ("id", "user_id", "scope", "key", "resource_id", "status", "created_at", "expires_at")
			VALUES ('n-`+col+`', 'u', 's', 'k-`+col+`', 'r', 200, ?, ?)`, now, now).Error
		if err != nil {
			t.Fatalf("baseline insert for %s: %v", col, err)
		}
		err = db.Exec(`UPDATE idempotency SET "`+col+`" = NULL WHERE id = ?`, "n-"+col).Error
		if err == nil {
			t.Fatalf("%s accepted NULL", col)
		}
	}
}
