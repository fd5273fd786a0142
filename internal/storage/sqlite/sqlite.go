// Package sqlite implements the storage contract over an embedded SQLite
// database held fully in memory and snapshot-persisted to a single file.
//
// Writes mark a dirty flag instead of flushing synchronously; a background
// ticker writes the whole database out when the flag is set. A hard crash
// between ticks loses the most recent batch of writes.
package sqlite

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// Config controls where and how often the in-memory database is persisted.
// An empty Path disables persistence entirely (used by tests).
type Config struct {
	Path          string
	FlushInterval time.Duration
}

// Store is the relational storage.Provider implementation.
type Store struct {
	db        *gorm.DB
	persister *persister
}

var _ storage.Provider = (*Store)(nil)

// Open creates the in-memory database, migrates the schema, loads the
// snapshot file if one exists and starts the background flusher.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps the memory database alive and serializes
	// writers, which is what makes start-stops-previous safe under
	// concurrent calls for the same user.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Category{},
		&entities.TimeEntry{},
		&entities.RefreshToken{},
		&entities.PasswordResetToken{},
		&entities.UserSettings{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := &Store{db: db}

	if cfg.Path != "" {
		if err := loadSnapshot(db, cfg.Path); err != nil {
			return nil, fmt.Errorf("failed to load snapshot %s: %w", cfg.Path, err)
		}
		store.persister = newPersister(db, cfg.Path, cfg.FlushInterval)
		// Flush once right after load so the schema on disk is current.
		if err := store.persister.flush(); err != nil {
			return nil, fmt.Errorf("initial flush failed: %w", err)
		}
		store.persister.start()
		log.Printf("sqlite store: initialized, snapshot at %s (flush every %s)", cfg.Path, store.persister.interval)
	} else {
		log.Printf("sqlite store: initialized without persistence")
	}

	return store, nil
}

// Close drains the dirty flag with a final flush and closes the database.
func (s *Store) Close(ctx context.Context) error {
	if s.persister != nil {
		s.persister.stop()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// markDirty records that the in-memory state diverged from the snapshot.
func (s *Store) markDirty() {
	if s.persister != nil {
		s.persister.markDirty()
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqliteTimeLayouts covers the formats the driver emits for computed
// datetime columns (MAX(start_time) comes back as raw text).
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseSQLiteTime(value string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized sqlite datetime %q", value)
}
