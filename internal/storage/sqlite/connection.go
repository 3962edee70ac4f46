// Package sqlite owns the SQLite connection backing goqite, the Job
// Queue's transport (spec.md §4.F). No other table lives here; job status
// and history live in BadgerDB (internal/storage/badger).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"maragu.dev/goqite"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/tcad-harvester/internal/common"
)

// SQLiteDB manages the SQLite database connection shared by every goqite
// priority-bucket queue.
type SQLiteDB struct {
	db     *sql.DB
	logger arbor.ILogger
}

// NewSQLiteDB opens (or resets, per config) the SQLite connection and
// ensures goqite's schema exists.
func NewSQLiteDB(logger arbor.ILogger, config *common.StorageConfig) (*SQLiteDB, error) {
	dir := filepath.Dir(config.SQLitePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	if config.ResetOnStartup {
		if err := resetDatabase(logger, config.SQLitePath); err != nil {
			return nil, fmt.Errorf("reset sqlite database: %w", err)
		}
	}

	logger.Debug().Str("path", config.SQLitePath).Msg("Opening SQLite database connection")

	db, err := sql.Open("sqlite", config.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite does not handle concurrent writers well; a single connection
	// paired with WAL mode keeps goqite's reserve/complete/fail operations
	// serialized without external locking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := goqite.Setup(context.Background(), db); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			db.Close()
			return nil, fmt.Errorf("initialize goqite schema: %w", err)
		}
	}

	logger.Info().Str("path", config.SQLitePath).Msg("SQLite database initialized")
	return &SQLiteDB{db: db, logger: logger}, nil
}

// DB returns the underlying connection, consumed by one goqite.Queue per
// priority bucket.
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func resetDatabase(logger arbor.ILogger, dbPath string) error {
	logger.Warn().Str("path", dbPath).Msg("Resetting SQLite database (reset_on_startup=true)")

	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}
