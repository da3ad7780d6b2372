package store

import "fmt"

// SlotsPerDay is the number of 15-minute buckets in one local day.
const SlotsPerDay = 96

// SlotCell is one (date, slot, channel) occupancy cell.
// Invariant: Active == 1 iff EventCount > 0.
type SlotCell struct {
	Date       string
	Slot       int
	Channel    string
	Active     int
	EventCount int
}

// UpsertSlot writes one cell, overwriting any existing row for the key.
func (s *Store) UpsertSlot(c SlotCell) error {
	_, err := s.db.Exec(
		`INSERT INTO slot_summary (date, slot, channel, active, event_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (date, slot, channel) DO UPDATE SET
		   active = excluded.active, event_count = excluded.event_count`,
		c.Date, c.Slot, c.Channel, c.Active, c.EventCount)
	if err != nil {
		return fmt.Errorf("store: upsert slot: %w", err)
	}
	return nil
}

// SlotGrid loads the full day grid for date as channel → 96 active bits.
// Channels absent from the row set still get a zero-filled vector.
// ErrNotFound when no row at all exists for the date.
func (s *Store) SlotGrid(date string, channels []string) (map[string][]int, error) {
	rows, err := s.db.Query(
		"SELECT slot, channel, active FROM slot_summary WHERE date = ?", date)
	if err != nil {
		return nil, fmt.Errorf("store: slot grid: %w", err)
	}
	defer rows.Close()

	grid := make(map[string][]int, len(channels))
	for _, ch := range channels {
		grid[ch] = make([]int, SlotsPerDay)
	}

	found := false
	for rows.Next() {
		var slot, active int
		var ch string
		if err := rows.Scan(&slot, &ch, &active); err != nil {
			return nil, fmt.Errorf("store: scan slot: %w", err)
		}
		found = true
		if vec, ok := grid[ch]; ok && slot >= 0 && slot < SlotsPerDay {
			vec[slot] = active
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return grid, nil
}

// MeanSlotProfile averages the active bit per slot across all listed
// channels and every date with from ≤ date < to, returning a 96-value
// profile plus the number of distinct dates that contributed.
func (s *Store) MeanSlotProfile(from, to string, channels []string) ([]float64, int, error) {
	args := make([]any, 0, len(channels)+2)
	args = append(args, from, to)
	placeholders := ""
	for i, ch := range channels {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, ch)
	}

	rows, err := s.db.Query(
		`SELECT slot, AVG(active), COUNT(DISTINCT date) FROM slot_summary
		 WHERE date >= ? AND date < ? AND channel IN (`+placeholders+`)
		 GROUP BY slot`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: mean slot profile: %w", err)
	}
	defer rows.Close()

	profile := make([]float64, SlotsPerDay)
	days := 0
	for rows.Next() {
		var slot, n int
		var mean float64
		if err := rows.Scan(&slot, &mean, &n); err != nil {
			return nil, 0, fmt.Errorf("store: scan slot profile: %w", err)
		}
		if slot >= 0 && slot < SlotsPerDay {
			profile[slot] = mean
		}
		if n > days {
			days = n
		}
	}
	return profile, days, rows.Err()
}

// FillMissingSlots inserts zero rows for every (slot, channel) of the date
// that has no row yet. Existing rows are untouched. Run at 00:05 for
// yesterday so the learner always sees a complete grid.
func (s *Store) FillMissingSlots(date string, channels []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: fill slots begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO slot_summary (date, slot, channel, active, event_count)
		 VALUES (?, ?, ?, 0, 0)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: fill slots prepare: %w", err)
	}
	defer stmt.Close()

	for slot := 0; slot < SlotsPerDay; slot++ {
		for _, ch := range channels {
			if _, err := stmt.Exec(date, slot, ch); err != nil {
				tx.Rollback()
				return fmt.Errorf("store: fill slot %d/%s: %w", slot, ch, err)
			}
		}
	}
	return tx.Commit()
}
