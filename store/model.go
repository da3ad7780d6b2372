package store

import (
	"fmt"

	"eldersentry/beta"
)

// Model is the full posterior grid: channel → 96 cells.
type Model map[string][]beta.Posterior

// LoadModel reads model_state into a Model. Cells missing from the table
// (e.g. a channel added after first seeding) fall back to the prior.
// ErrNotFound when the table is completely empty.
func (s *Store) LoadModel(channels []string, priorAlpha, priorBeta float64) (Model, error) {
	rows, err := s.db.Query("SELECT slot, channel, alpha, beta FROM model_state")
	if err != nil {
		return nil, fmt.Errorf("store: load model: %w", err)
	}
	defer rows.Close()

	model := make(Model, len(channels))
	for _, ch := range channels {
		cells := make([]beta.Posterior, SlotsPerDay)
		for i := range cells {
			cells[i] = beta.Posterior{Alpha: priorAlpha, Beta: priorBeta}
		}
		model[ch] = cells
	}

	found := false
	for rows.Next() {
		var slot int
		var ch string
		var a, b float64
		if err := rows.Scan(&slot, &ch, &a, &b); err != nil {
			return nil, fmt.Errorf("store: scan model cell: %w", err)
		}
		found = true
		if cells, ok := model[ch]; ok && slot >= 0 && slot < SlotsPerDay {
			cells[slot] = beta.Posterior{Alpha: a, Beta: b}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return model, nil
}

// SeedModel inserts the prior for every (slot, channel) cell in one
// transaction. First learner run only.
func (s *Store) SeedModel(channels []string, priorAlpha, priorBeta float64) (Model, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: seed model begin: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO model_state (slot, channel, alpha, beta) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("store: seed model prepare: %w", err)
	}
	defer stmt.Close()

	model := make(Model, len(channels))
	for _, ch := range channels {
		cells := make([]beta.Posterior, SlotsPerDay)
		for slot := 0; slot < SlotsPerDay; slot++ {
			cells[slot] = beta.Posterior{Alpha: priorAlpha, Beta: priorBeta}
			if _, err := stmt.Exec(slot, ch, priorAlpha, priorBeta); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("store: seed cell %d/%s: %w", slot, ch, err)
			}
		}
		model[ch] = cells
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: seed model commit: %w", err)
	}
	s.log.Info().Int("cells", len(channels)*SlotsPerDay).Msg("model state seeded")
	return model, nil
}

// SaveModel persists updated posteriors with last_updated = date, all in one
// transaction so a crash never leaves a half-written day.
func (s *Store) SaveModel(model Model, date string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save model begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`UPDATE model_state SET alpha = ?, beta = ?, last_updated = ?
		 WHERE slot = ? AND channel = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: save model prepare: %w", err)
	}
	defer stmt.Close()

	for ch, cells := range model {
		for slot, p := range cells {
			if _, err := stmt.Exec(p.Alpha, p.Beta, date, slot, ch); err != nil {
				tx.Rollback()
				return fmt.Errorf("store: save cell %d/%s: %w", slot, ch, err)
			}
		}
	}
	return tx.Commit()
}

// CommitLearningDay persists one processed day atomically: the conditioned
// posteriors and the date's daily_scores row commit together or not at all.
// The insert is strict (no REPLACE), so a pre-existing row for the date rolls
// the whole day back and a posterior can never be conditioned twice for it.
func (s *Store) CommitLearningDay(model Model, date string, row DailyScore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: learning day begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`UPDATE model_state SET alpha = ?, beta = ?, last_updated = ?
		 WHERE slot = ? AND channel = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: learning day prepare: %w", err)
	}
	defer stmt.Close()

	for ch, cells := range model {
		for slot, p := range cells {
			if _, err := stmt.Exec(p.Alpha, p.Beta, date, slot, ch); err != nil {
				tx.Rollback()
				return fmt.Errorf("store: learning day cell %d/%s: %w", slot, ch, err)
			}
		}
	}

	_, err = tx.Exec(
		`INSERT INTO daily_scores (`+dailyScoreColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Date, row.TrainDays,
		row.NLLPresence, row.NLLFridge, row.NLLBathroom, row.NLLDoor, row.NLLTotal,
		row.ExpectedCount, row.ObservedCount, row.CountZ,
		row.CompositeZ, row.AlertLevel,
		row.AwAccuracy, row.AwBalancedAcc, row.AwActiveRecall,
		row.IsLearning)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: learning day score row: %w", err)
	}
	return tx.Commit()
}

// AverageCIWidth returns the mean 90% credible-interval width across every
// persisted posterior cell. ErrNotFound when model_state is empty.
func (s *Store) AverageCIWidth() (float64, error) {
	rows, err := s.db.Query("SELECT alpha, beta FROM model_state")
	if err != nil {
		return 0, fmt.Errorf("store: avg ci width: %w", err)
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var a, b float64
		if err := rows.Scan(&a, &b); err != nil {
			return 0, fmt.Errorf("store: scan posterior: %w", err)
		}
		sum += beta.Posterior{Alpha: a, Beta: b}.CIWidth()
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return sum / float64(n), nil
}
