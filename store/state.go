package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Well-known system_state keys.
const (
	KeyVacationMode       = "vacation_mode"
	KeyAlertRateState     = "alert_rate_state"
	KeyLastBathroomTime   = "last_bathroom_time"
	KeyTelegramLastOffset = "telegram_last_offset"
	KeyMorningAlertCount  = "morning_alert_count"
)

// GetState reads one key from system_state, returning def when absent.
func (s *Store) GetState(key, def string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM system_state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("store: get state %q: %w", key, err)
	}
	return v, nil
}

// SetState upserts one key/value pair.
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO system_state (key, value, updated_at)
		 VALUES (?, ?, datetime('now'))`, key, value)
	if err != nil {
		return fmt.Errorf("store: set state %q: %w", key, err)
	}
	return nil
}

// ClearState removes one key.
func (s *Store) ClearState(key string) error {
	if _, err := s.db.Exec("DELETE FROM system_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("store: clear state %q: %w", key, err)
	}
	return nil
}

// VacationMode reports the persisted flag; the config seed applies only
// while no persisted value exists.
func (s *Store) VacationMode(seed bool) bool {
	v, err := s.GetState(KeyVacationMode, "")
	if err != nil || v == "" {
		return seed
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// SetVacationMode persists the flag.
func (s *Store) SetVacationMode(on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	return s.SetState(KeyVacationMode, v)
}
