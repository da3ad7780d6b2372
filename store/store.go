package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// Layouts for the textual date/time columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "2006-01-02T15:04:05"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// migration is one transactional schema step. Versions apply in strictly
// increasing order, each at most once.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
	CREATE TABLE IF NOT EXISTS sensor_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp   TEXT NOT NULL,
		sensor_id   TEXT NOT NULL,
		channel     TEXT NOT NULL,
		event_type  TEXT NOT NULL DEFAULT 'state_change',
		value       TEXT,
		created_at  TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON sensor_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_channel ON sensor_events(channel, timestamp);

	CREATE TABLE IF NOT EXISTS slot_summary (
		date        TEXT NOT NULL,
		slot        INTEGER NOT NULL,
		channel     TEXT NOT NULL,
		active      INTEGER NOT NULL DEFAULT 0,
		event_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, slot, channel)
	);

	CREATE TABLE IF NOT EXISTS daily_scores (
		date              TEXT PRIMARY KEY,
		train_days        INTEGER,
		nll_presence      REAL,
		nll_fridge        REAL,
		nll_bathroom      REAL,
		nll_door          REAL,
		nll_total         REAL,
		expected_count    REAL,
		observed_count    INTEGER,
		count_z           REAL,
		composite_z       REAL,
		alert_level       INTEGER DEFAULT 0,
		aw_accuracy       REAL,
		aw_balanced_acc   REAL,
		aw_active_recall  REAL,
		is_learning       INTEGER DEFAULT 1,
		created_at        TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS model_state (
		slot        INTEGER NOT NULL,
		channel     TEXT NOT NULL,
		alpha       REAL NOT NULL DEFAULT 1,
		beta        REAL NOT NULL DEFAULT 1,
		last_updated TEXT,
		PRIMARY KEY (slot, channel)
	);
	`},
	{2, `
	CREATE TABLE IF NOT EXISTS system_state (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS pending_alerts (
		id          TEXT PRIMARY KEY,
		level       INTEGER NOT NULL,
		message     TEXT NOT NULL,
		timestamp   TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending'
	);
	CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_alerts(status, timestamp);
	`},
}

// Store wraps the SQLite handle. Safe for concurrent use; SQLite serialises
// writers and the busy timeout absorbs short contention.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the parent directory if needed, opens the database with WAL
// mode and a 5 s busy timeout, and applies pending migrations.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer connection avoids SQLITE_BUSY storms across goroutines.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for package-internal accessors and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			applied_at  TEXT DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration v%d: %w", m.version, err)
		}
		if _, err = tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: apply migration v%d: %w", m.version, err)
		}
		if _, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record migration v%d: %w", m.version, err)
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration v%d: %w", m.version, err)
		}
		s.log.Info().Int("version", m.version).Msg("migration applied")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

// CleanupOldEvents deletes sensor_events older than retentionDays whole days
// and returns the number of deleted rows.
func (s *Store) CleanupOldEvents(retentionDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays).Format(DateLayout) + "T00:00:00"
	res, err := s.db.Exec("DELETE FROM sensor_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info().Int64("deleted", n).Int("retention_days", retentionDays).
			Msg("old sensor events removed")
	}
	return n, nil
}

// Maintenance truncates the WAL. Checkpoint over VACUUM: low I/O on the Pi.
func (s *Store) Maintenance() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}
	return nil
}

// FileSizeBytes reports the database file size for process monitoring.
func (s *Store) FileSizeBytes(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
