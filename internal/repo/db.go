// Package repo is the GORM persistence layer of the support backend.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

const (
	maxOpenConns  = 10
	slowQueryWarn = 250 * time.Millisecond
)

// pragmas are part of the DSN so the driver applies them to every pooled
// connection; foreign_keys and busy_timeout are per-connection settings.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// gormLog routes GORM warnings (slow queries, errors) to zerolog.
type gormLog struct{}

func (gormLog) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// sqliteDSN appends the pragmas to path, keeping any query it already has.
func sqliteDSN(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist. Queries are traced as children of the request span.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.New(gormLog{}, logger.Config{
			SlowThreshold:             slowQueryWarn,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Models lists every persisted type in migration order: users first, then
// tickets and the tables that reference them.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Ticket{},
		&domain.TicketHistory{},
		&domain.TicketMessage{},
		&domain.Notification{},
		&domain.CallbackRequest{},
		&domain.SupportForm{},
		&domain.LiveChatSession{},
		&domain.LiveChatMessage{},
		&domain.AgentTransfer{},
		&domain.FileUpload{},
		&domain.Page{},
		&domain.PageSection{},
		&domain.FAQ{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema of every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
