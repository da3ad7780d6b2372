package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PendingAlert statuses. Every row eventually reaches acknowledged or
// escalated; acknowledged rows never regress.
const (
	StatusPending      = "pending"
	StatusAcknowledged = "acknowledged"
	StatusEscalated    = "escalated"
)

// PendingAlert is a level-3 notification awaiting acknowledgement.
type PendingAlert struct {
	ID        string
	Level     int
	Message   string
	Timestamp string // TimeLayout
	Status    string
}

// InsertPendingAlert persists a new pending row.
func (s *Store) InsertPendingAlert(a PendingAlert) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_alerts (id, level, message, timestamp, status)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Level, a.Message, a.Timestamp, a.Status)
	if err != nil {
		return fmt.Errorf("store: insert pending alert: %w", err)
	}
	return nil
}

// PendingAlertByID returns one row or ErrNotFound.
func (s *Store) PendingAlertByID(id string) (PendingAlert, error) {
	var a PendingAlert
	err := s.db.QueryRow(
		`SELECT id, level, message, timestamp, status
		 FROM pending_alerts WHERE id = ?`, id).
		Scan(&a.ID, &a.Level, &a.Message, &a.Timestamp, &a.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingAlert{}, ErrNotFound
	}
	if err != nil {
		return PendingAlert{}, fmt.Errorf("store: pending alert by id: %w", err)
	}
	return a, nil
}

// DuePendingAlerts returns rows still pending whose timestamp is at or
// before cutoff (TimeLayout string compare matches chronology).
func (s *Store) DuePendingAlerts(cutoff string) ([]PendingAlert, error) {
	rows, err := s.db.Query(
		`SELECT id, level, message, timestamp, status FROM pending_alerts
		 WHERE status = ? AND timestamp <= ? ORDER BY timestamp`,
		StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: due pending alerts: %w", err)
	}
	defer rows.Close()

	var out []PendingAlert
	for rows.Next() {
		var a PendingAlert
		if err := rows.Scan(&a.ID, &a.Level, &a.Message, &a.Timestamp, &a.Status); err != nil {
			return nil, fmt.Errorf("store: scan pending alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgePendingAlert flips a still-pending row to acknowledged.
// Returns false when the row was absent or already resolved, so an ack
// arriving after escalation cannot rewrite history.
func (s *Store) AcknowledgePendingAlert(id string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE pending_alerts SET status = ? WHERE id = ? AND status = ?",
		StatusAcknowledged, id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("store: acknowledge alert: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// EscalatePendingAlert flips a still-pending row to escalated.
func (s *Store) EscalatePendingAlert(id string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE pending_alerts SET status = ? WHERE id = ? AND status = ?",
		StatusEscalated, id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("store: escalate alert: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PurgeOldPendingAlerts drops rows older than maxAgeDays regardless of
// status. Part of nightly maintenance.
func (s *Store) PurgeOldPendingAlerts(maxAgeDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -maxAgeDays).Format(TimeLayout)
	res, err := s.db.Exec("DELETE FROM pending_alerts WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge pending alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
