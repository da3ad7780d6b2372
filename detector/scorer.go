package detector

import (
	"errors"

	"eldersentry/config"
	"eldersentry/store"

	"github.com/rs/zerolog"
)

// ErrNoScoreRow indicates the learner has not written the target date yet;
// a defined no-op for the scheduler.
var ErrNoScoreRow = errors.New("detector: no daily score row for date")

// Baseline window: at most this many recent normal days feed the NLL stats.
const baselineMaxDays = 30

// Result is the outcome of scoring one day.
type Result struct {
	Date       string
	NLLZ       float64
	CountZ     float64
	CountRisk  float64
	CompositeZ float64
	AlertLevel int
}

// ScoreDay computes composite_z and alert_level for one date and updates the
// daily_scores row in place. The learner must have run first.
//
// Risk combination is one-sided on both axes:
//
//	nll_z      = max(0, (nll_total − baseline mean) / baseline std)
//	count_risk = max(0, −count_z)
//	composite  = max(nll_z, count_risk)
//
// During the learning phase the tier is capped at 1.
func ScoreDay(s *store.Store, cfg *config.Config, date string, log zerolog.Logger) (Result, error) {
	log = log.With().Str("component", "detector").Str("date", date).Logger()

	row, err := s.DailyScoreFor(date)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Msg("no daily score row, scorer skipping")
		return Result{}, ErrNoScoreRow
	}
	if err != nil {
		return Result{}, err
	}

	history, err := NormalStats(s, baselineMaxDays, cfg.Alerts.MinTrainDays, date)
	if err != nil {
		return Result{}, err
	}

	var nllZ float64
	if history.Ready {
		nllZ = (row.NLLTotal - history.MeanNLL) / history.StdNLL
		if nllZ < 0 {
			nllZ = 0
		}
	}

	countRisk := -row.CountZ
	if countRisk < 0 {
		countRisk = 0
	}

	composite := nllZ
	if countRisk > composite {
		composite = countRisk
	}

	level := AlertLevelFor(composite, cfg)
	if row.IsLearning == 1 && level > LevelGentle {
		level = LevelGentle
	}

	if err := s.UpdateScore(date, composite, level); err != nil {
		return Result{}, err
	}

	res := Result{
		Date:       date,
		NLLZ:       nllZ,
		CountZ:     row.CountZ,
		CountRisk:  countRisk,
		CompositeZ: composite,
		AlertLevel: level,
	}
	log.Info().
		Float64("nll_z", nllZ).
		Float64("count_risk", countRisk).
		Float64("composite_z", composite).
		Int("alert_level", level).
		Msg("day scored")
	return res, nil
}
