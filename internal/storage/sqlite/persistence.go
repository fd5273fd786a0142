package sqlite

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

const defaultFlushInterval = 5 * time.Second

// snapshotTables are the tables carried between the snapshot file and the
// in-memory database, in foreign-key order.
var snapshotTables = []string{
	"users",
	"categories",
	"time_entries",
	"refresh_tokens",
	"password_reset_tokens",
	"user_settings",
}

// persister implements the batched persistence policy: writes mark a dirty
// flag, a fixed-interval ticker flushes the whole in-memory database to the
// snapshot file when the flag is set, and stop() drains the flag before the
// process exits. Flush failures are logged and retried on the next tick.
type persister struct {
	db       *gorm.DB
	path     string
	interval time.Duration

	dirty atomic.Bool
	mu    sync.Mutex // serializes flushes
	done  chan struct{}
	wg    sync.WaitGroup
}

func newPersister(db *gorm.DB, path string, interval time.Duration) *persister {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &persister{
		db:       db,
		path:     path,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (p *persister) markDirty() {
	p.dirty.Store(true)
}

func (p *persister) start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.flushIfDirty()
			case <-p.done:
				return
			}
		}
	}()
}

// stop halts the ticker and performs a final drain of the dirty flag.
func (p *persister) stop() {
	close(p.done)
	p.wg.Wait()
	p.flushIfDirty()
}

func (p *persister) flushIfDirty() {
	if !p.dirty.Swap(false) {
		return
	}
	if err := p.flush(); err != nil {
		log.Printf("sqlite store: flush failed, will retry: %v", err)
		p.dirty.Store(true)
	}
}

// flush snapshots the in-memory database with VACUUM INTO a temp file and
// renames it over the target, so readers never see a half-written snapshot.
func (p *persister) flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tmp := p.path + ".tmp"
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := p.db.Exec("VACUUM INTO ?", tmp).Error; err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return os.Rename(tmp, p.path)
}

// loadSnapshot attaches the snapshot file and copies its tables into the
// freshly migrated in-memory database.
func loadSnapshot(db *gorm.DB, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if err := db.Exec("ATTACH DATABASE ? AS snapshot", path).Error; err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	var existing []string
	err := db.Raw("SELECT name FROM snapshot.sqlite_master WHERE type = 'table'").Scan(&existing).Error
	if err == nil {
		present := make(map[string]bool, len(existing))
		for _, name := range existing {
			present[name] = true
		}
		for _, table := range snapshotTables {
			if !present[table] {
				continue
			}
			if copyErr := db.Exec("INSERT INTO main." + table + " SELECT * FROM snapshot." + table).Error; copyErr != nil {
				err = fmt.Errorf("copy table %s: %w", table, copyErr)
				break
			}
		}
	}

	if detachErr := db.Exec("DETACH DATABASE snapshot").Error; detachErr != nil && err == nil {
		err = fmt.Errorf("detach: %w", detachErr)
	}
	return err
}
