// Package radioid maintains a local, periodically-refreshed cache of
// the radioid.net DMR user database and serves best-effort
// callsign/name lookups against it for log and status annotation.
// Nothing in the relay's core dispatch path depends on this package:
// a lookup miss, a sync failure, or radioid being disabled entirely
// all leave DMRD relaying unaffected.
package radioid

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
)

// Config holds the directory's on-disk location.
type Config struct {
	Path string
}

// Directory is the relay's read path into the local copy of the
// radioid.net user list. A small in-memory cache sits in front of the
// SQLite table it's backed by, so a lookup made from the dispatch
// goroutine never waits on disk once a radio id has been seen once.
type Directory struct {
	conn *gorm.DB
	log  *logger.Logger

	mu    sync.RWMutex
	cache map[uint32]*User
}

// Open creates (or opens) the SQLite-backed directory and runs its
// migration.
func Open(cfg Config, log *logger.Logger) (*Directory, error) {
	if cfg.Path == "" {
		cfg.Path = "radioid.db"
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating radioid db directory: %w", err)
		}
	}

	gormLog := gormlogger.New(&gormLogAdapter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}
	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("opening radioid db: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("radioid db handle: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := conn.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrating radioid db: %w", err)
	}

	log.Info("radioid directory opened", logger.String("path", cfg.Path))
	return &Directory{conn: conn, log: log, cache: make(map[uint32]*User)}, nil
}

// Close closes the underlying connection.
func (d *Directory) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Lookup returns the directory entry for a radio ID, checking the
// in-memory cache before falling back to the table on disk. This is
// the only read path the relay's dispatch goroutine actually takes;
// writes go through Refresh, on the sync side.
func (d *Directory) Lookup(radioID uint32) (*User, bool) {
	d.mu.RLock()
	u, ok := d.cache[radioID]
	d.mu.RUnlock()
	if ok {
		return u, true
	}

	var row User
	if err := d.conn.Where("radio_id = ?", radioID).First(&row).Error; err != nil {
		return nil, false
	}

	d.mu.Lock()
	d.cache[radioID] = &row
	d.mu.Unlock()
	return &row, true
}

// Count returns the number of rows currently stored on disk.
func (d *Directory) Count() (int64, error) {
	var count int64
	err := d.conn.Model(&User{}).Count(&count).Error
	return count, err
}

// Refresh replaces the entire directory, both the table on disk and
// the in-memory cache, with users, inside a single transaction that
// inserts batchSize rows per statement.
// The radioid.net feed is always a full snapshot rather than a diff,
// so there is no partial-update path: a sync either replaces
// everything or, on error, leaves the previous directory untouched.
func (d *Directory) Refresh(users []User, batchSize int) error {
	if len(users) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(users)
	}

	err := d.conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&User{}).Error; err != nil {
			return err
		}
		for i := 0; i < len(users); i += batchSize {
			end := i + batchSize
			if end > len(users) {
				end = len(users)
			}
			if err := tx.Create(users[i:end]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fresh := make(map[uint32]*User, len(users))
	for i := range users {
		u := users[i]
		fresh[u.RadioID] = &u
	}

	d.mu.Lock()
	d.cache = fresh
	d.mu.Unlock()
	return nil
}

type gormLogAdapter struct{ log *logger.Logger }

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
