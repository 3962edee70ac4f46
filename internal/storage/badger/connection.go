// Package badger is the embedded store for Property, ScrapeJob, and
// TermHistory records, adapted from the teacher's internal/storage/badger
// connection wrapper (same badgerhold.Store, same reset-on-startup policy).
package badger

import (
	"fmt"
	"os"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tcad-harvester/internal/common"
)

// DB manages the BadgerDB connection shared by every store in this package.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewDB opens (or resets, per config) the Badger database.
func NewDB(logger arbor.ILogger, config *common.StorageConfig) (*DB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // disable badger's own logger; arbor is the single surface

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &DB{store: store, logger: logger}, nil
}

// Store returns the underlying badgerhold store.
func (b *DB) Store() *badgerhold.Store {
	return b.store
}

// Badger returns the raw badger.DB for transactions that need read-then-write
// atomicity beyond what badgerhold's per-call API exposes (the Upsert
// Pipeline's insert-vs-update discrimination).
func (b *DB) Badger() *badgerdb.DB {
	return b.store.Badger()
}

// Close closes the database connection.
func (b *DB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
