// Package store is the persistence layer. Production runs on MySQL,
// local use and tests run on the pure-Go SQLite driver; everything above
// this package is dialect-agnostic.
package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"firewall-policy-auditor/internal/model"
)

// Store wraps the database handle and the typed query surface.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the configured database and migrates the schema.
// Supported drivers are "mysql" and "sqlite" (the default).
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver != "mysql" {
		// SQLite serializes writers anyway, and a second connection to a
		// ":memory:" DSN would see a different database entirely.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Debug().Str("driver", driver).Msg("database ready")
	return &Store{db: db, log: log}, nil
}

// DB exposes the underlying handle for callers that compose their own
// transactions, such as the policy reconciler.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn atomically.
func (s *Store) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}
