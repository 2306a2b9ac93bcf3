package repo

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

func TestSqliteDSN(t *testing.T) {
	dsn := sqliteDSN("/var/lib/support/app.db")
	assert.True(t, strings.HasPrefix(dsn, "/var/lib/support/app.db?_pragma=journal_mode(WAL)&"), dsn)
	assert.Equal(t, len(pragmas), strings.Count(dsn, "_pragma="))

	dsn = sqliteDSN("file:app.db?cache=shared")
	assert.True(t, strings.HasPrefix(dsn, "file:app.db?cache=shared&_pragma="), dsn)
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "support.db")
	db, err := OpenSQLite(bad)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.True(t, os.IsNotExist(err) || strings.Contains(err.Error(), "database directory"), err.Error())
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "support.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, maxOpenConns, sqlDB.Stats().MaxOpenConnections)

	ctx := context.Background()
	// Hold two connections at once so the pool must open a second one.
	c1, err := sqlDB.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := sqlDB.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()

	for _, conn := range []*sql.Conn{c1, c2} {
		var fk, busy int
		var journal string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, busy)
		assert.Equal(t, "wal", strings.ToLower(journal))
	}
}

func TestAutoMigrate_AllModels(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "support.db"))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db), "migrations are re-runnable")
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	now := time.Now().UTC()
	require.NoError(t, db.Create(&domain.LiveChatSession{ID: "s1", Status: domain.SessionActive, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, db.Create(&domain.LiveChatMessage{ID: "m1", SessionID: "s1", Message: "Is my inverter covered?", CreatedAt: now}).Error)

	// foreign_keys is on: a message for an unknown session is refused.
	err = db.Create(&domain.LiveChatMessage{ID: "m2", SessionID: "nope", Message: "x", CreatedAt: now}).Error
	assert.Error(t, err)
}
