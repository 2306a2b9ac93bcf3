package repo

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

var ticketKey = IdempotencyKey{Caller: "user:cust-1", Scope: "POST /api/tickets", Key: "submit-1"}

func TestFindIdempotency_IncompleteKey(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	for _, k := range []IdempotencyKey{
		{Caller: "user:cust-1", Scope: "  ", Key: "k"},
		{Caller: "", Scope: "POST /api/tickets", Key: "k"},
		{Caller: "user:cust-1", Scope: "POST /api/tickets"},
	} {
		rec, err := FindIdempotency(context.Background(), db, k, time.Now())
		assert.ErrorIs(t, err, ErrNotFound, "%+v", k)
		assert.Nil(t, rec)
	}
}

func TestSaveThenFindIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	saved, err := SaveIdempotency(ctx, db, ticketKey, "t-1", http.StatusCreated, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.WithinDuration(t, saved.CreatedAt.Add(time.Hour), saved.ExpiresAt, time.Second)

	got, err := FindIdempotency(ctx, db, ticketKey, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ResourceID)
	assert.Equal(t, http.StatusCreated, got.Status)

	// Keys are isolated per route and per caller.
	other := ticketKey
	other.Scope = "POST /api/callbacks"
	_, err = FindIdempotency(ctx, db, other, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = SaveIdempotency(ctx, db, other, "cb-1", http.StatusCreated, time.Hour)
	assert.NoError(t, err)

	_, err = SaveIdempotency(ctx, db, ticketKey, "t-2", http.StatusCreated, time.Hour)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindIdempotency_Expired(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	_, err := SaveIdempotency(ctx, db, ticketKey, "t-1", http.StatusCreated, time.Minute)
	require.NoError(t, err)

	_, err = FindIdempotency(ctx, db, ticketKey, time.Now().Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveIdempotency_IncompleteKey(t *testing.T) {
	_, err := SaveIdempotency(context.Background(), newTestDB(t, &domain.Idempotency{}), IdempotencyKey{Caller: "u"}, "t", 200, time.Hour)
	assert.Error(t, err)
}

func TestSaveIdempotency_NoTable(t *testing.T) {
	_, err := SaveIdempotency(context.Background(), newTestDB(t), ticketKey, "t", 200, time.Hour)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	short := ticketKey
	short.Key = "short"
	_, err := SaveIdempotency(ctx, db, short, "t-1", 200, time.Minute)
	require.NoError(t, err)
	_, err = SaveIdempotency(ctx, db, ticketKey, "t-2", 200, 24*time.Hour)
	require.NoError(t, err)

	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = FindIdempotency(ctx, db, ticketKey, time.Now())
	assert.NoError(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, isUniqueViolation(errors.New("no such table: users")))
}
