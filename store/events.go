package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SensorEvent is one accepted, debounced sensor transition. Rows are created
// by the ingestion front end and read-only for the detection core.
type SensorEvent struct {
	ID        int64
	Timestamp string // TimeLayout, local wall clock
	SensorID  string
	Channel   string
	EventType string
	Value     string
}

// InsertEvent records one accepted event.
func (s *Store) InsertEvent(ev SensorEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO sensor_events (timestamp, sensor_id, channel, event_type, value)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.SensorID, ev.Channel, ev.EventType, ev.Value)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// CountEventsBetween counts events with from ≤ timestamp < to.
func (s *Store) CountEventsBetween(from, to string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sensor_events WHERE timestamp >= ? AND timestamp < ?",
		from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}

// LastEventTime returns the newest event timestamp at or after from.
// ErrNotFound when no event qualifies.
func (s *Store) LastEventTime(from string) (string, error) {
	var ts sql.NullString
	err := s.db.QueryRow(
		"SELECT MAX(timestamp) FROM sensor_events WHERE timestamp >= ?", from).Scan(&ts)
	if err != nil {
		return "", fmt.Errorf("store: last event time: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return "", ErrNotFound
	}
	return ts.String, nil
}

// ChannelCountsBetween returns per-channel event counts for from ≤ ts < to.
func (s *Store) ChannelCountsBetween(from, to string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT channel, COUNT(*) FROM sensor_events
		 WHERE timestamp >= ? AND timestamp < ? GROUP BY channel`, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: channel counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ch string
		var n int
		if err := rows.Scan(&ch, &n); err != nil {
			return nil, fmt.Errorf("store: scan channel count: %w", err)
		}
		counts[ch] = n
	}
	return counts, rows.Err()
}

// DailyChannelCounts returns a full calendar of per-day event counts for one
// channel over the trailing `days` days ending today. Days without events are
// zero-filled so downstream regression sees the true series.
func (s *Store) DailyChannelCounts(channel string, days int, now time.Time) ([]int, error) {
	calendar := make([]string, days)
	today := now
	for i := 0; i < days; i++ {
		calendar[i] = today.AddDate(0, 0, -(days - 1 - i)).Format(DateLayout)
	}

	rows, err := s.db.Query(
		`SELECT substr(timestamp, 1, 10) AS d, COUNT(*) FROM sensor_events
		 WHERE channel = ? AND timestamp >= ? GROUP BY d`,
		channel, calendar[0]+"T00:00:00")
	if err != nil {
		return nil, fmt.Errorf("store: daily channel counts: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]int, days)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("store: scan daily count: %w", err)
		}
		byDate[d] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]int, days)
	for i, d := range calendar {
		out[i] = byDate[d]
	}
	return out, nil
}
