package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// DailyScore is one row of the daily_scores table: the learner inserts it
// with CompositeZ=0/AlertLevel=0 and the scorer overwrites those two fields.
type DailyScore struct {
	Date           string
	TrainDays      int
	NLLPresence    float64
	NLLFridge      float64
	NLLBathroom    float64
	NLLDoor        float64
	NLLTotal       float64
	ExpectedCount  float64
	ObservedCount  int
	CountZ         float64
	CompositeZ     float64
	AlertLevel     int
	AwAccuracy     float64
	AwBalancedAcc  float64
	AwActiveRecall float64
	IsLearning     int
}

// NLLFor returns the per-channel NLL column for one of the four fixed
// channels; unknown channels report 0.
func (d DailyScore) NLLFor(channel string) float64 {
	switch channel {
	case "presence":
		return d.NLLPresence
	case "fridge":
		return d.NLLFridge
	case "bathroom":
		return d.NLLBathroom
	case "door":
		return d.NLLDoor
	}
	return 0
}

const dailyScoreColumns = `date, train_days,
	nll_presence, nll_fridge, nll_bathroom, nll_door, nll_total,
	expected_count, observed_count, count_z,
	composite_z, alert_level,
	aw_accuracy, aw_balanced_acc, aw_active_recall,
	is_learning`

func scanDailyScore(row *sql.Row) (DailyScore, error) {
	var d DailyScore
	err := row.Scan(
		&d.Date, &d.TrainDays,
		&d.NLLPresence, &d.NLLFridge, &d.NLLBathroom, &d.NLLDoor, &d.NLLTotal,
		&d.ExpectedCount, &d.ObservedCount, &d.CountZ,
		&d.CompositeZ, &d.AlertLevel,
		&d.AwAccuracy, &d.AwBalancedAcc, &d.AwActiveRecall,
		&d.IsLearning)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyScore{}, ErrNotFound
	}
	if err != nil {
		return DailyScore{}, fmt.Errorf("store: scan daily score: %w", err)
	}
	return d, nil
}

// InsertDailyScore writes one row, replacing any previous row for the date.
func (s *Store) InsertDailyScore(d DailyScore) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO daily_scores (`+dailyScoreColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Date, d.TrainDays,
		d.NLLPresence, d.NLLFridge, d.NLLBathroom, d.NLLDoor, d.NLLTotal,
		d.ExpectedCount, d.ObservedCount, d.CountZ,
		d.CompositeZ, d.AlertLevel,
		d.AwAccuracy, d.AwBalancedAcc, d.AwActiveRecall,
		d.IsLearning)
	if err != nil {
		return fmt.Errorf("store: insert daily score: %w", err)
	}
	return nil
}

// DailyScoreFor returns the row for date, or ErrNotFound.
func (s *Store) DailyScoreFor(date string) (DailyScore, error) {
	row := s.db.QueryRow(
		"SELECT "+dailyScoreColumns+" FROM daily_scores WHERE date = ?", date)
	return scanDailyScore(row)
}

// LatestScore returns the newest row by date, or ErrNotFound.
func (s *Store) LatestScore() (DailyScore, error) {
	row := s.db.QueryRow(
		"SELECT " + dailyScoreColumns + " FROM daily_scores ORDER BY date DESC LIMIT 1")
	return scanDailyScore(row)
}

// HasDailyScore reports whether the learner already processed date.
func (s *Store) HasDailyScore(date string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM daily_scores WHERE date = ?", date).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: has daily score: %w", err)
	}
	return true, nil
}

// CountDailyScores returns the number of processed training days.
func (s *Store) CountDailyScores() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM daily_scores").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count daily scores: %w", err)
	}
	return n, nil
}

// UpdateScore overwrites composite_z and alert_level for date in place.
func (s *Store) UpdateScore(date string, compositeZ float64, alertLevel int) error {
	_, err := s.db.Exec(
		"UPDATE daily_scores SET composite_z = ?, alert_level = ? WHERE date = ?",
		compositeZ, alertLevel, date)
	if err != nil {
		return fmt.Errorf("store: update score: %w", err)
	}
	return nil
}

// NormalNLLHistory returns nll_total of up to maxDays most recent normal,
// post-learning days (alert_level=0, is_learning=0), excluding excludeDate.
// Newest first.
func (s *Store) NormalNLLHistory(maxDays int, excludeDate string) ([]float64, error) {
	rows, err := s.db.Query(
		`SELECT nll_total FROM daily_scores
		 WHERE alert_level = 0 AND is_learning = 0 AND date != ?
		 ORDER BY date DESC LIMIT ?`, excludeDate, maxDays)
	if err != nil {
		return nil, fmt.Errorf("store: normal history: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ChannelNLLAverages holds per-channel mean NLL across normal days plus the
// number of contributing rows.
type ChannelNLLAverages struct {
	Presence float64
	Fridge   float64
	Bathroom float64
	Door     float64
	N        int
}

// For mirrors DailyScore.NLLFor for the four fixed channels.
func (a ChannelNLLAverages) For(channel string) float64 {
	switch channel {
	case "presence":
		return a.Presence
	case "fridge":
		return a.Fridge
	case "bathroom":
		return a.Bathroom
	case "door":
		return a.Door
	}
	return 0
}

// NormalChannelAverages computes per-channel mean NLL over all normal,
// post-learning days excluding excludeDate.
func (s *Store) NormalChannelAverages(excludeDate string) (ChannelNLLAverages, error) {
	var a ChannelNLLAverages
	err := s.db.QueryRow(
		`SELECT COALESCE(AVG(nll_presence), 0), COALESCE(AVG(nll_fridge), 0),
		        COALESCE(AVG(nll_bathroom), 0), COALESCE(AVG(nll_door), 0),
		        COUNT(*)
		 FROM daily_scores
		 WHERE alert_level = 0 AND is_learning = 0 AND date != ?`,
		excludeDate).Scan(&a.Presence, &a.Fridge, &a.Bathroom, &a.Door, &a.N)
	if err != nil {
		return ChannelNLLAverages{}, fmt.Errorf("store: channel averages: %w", err)
	}
	return a, nil
}
