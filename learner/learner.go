package learner

import (
	"errors"
	"fmt"

	"eldersentry/beta"
	"eldersentry/config"
	"eldersentry/store"

	"github.com/rs/zerolog"
)

// Sentinel outcomes. Both are defined no-ops for the scheduler, not faults.
var (
	// ErrAlreadyProcessed indicates the date has a daily_scores row.
	ErrAlreadyProcessed = errors.New("learner: date already processed")

	// ErrNoSlotData indicates no slot_summary row exists for the date.
	ErrNoSlotData = errors.New("learner: no slot data for date")
)

// Run executes the daily learning pipeline for one date ("2006-01-02").
// Metrics are computed against the model as it stood before today's update;
// only then are the posteriors conditioned and persisted.
func Run(s *store.Store, cfg *config.Config, date string, log zerolog.Logger) error {
	log = log.With().Str("component", "learner").Str("date", date).Logger()

	done, err := s.HasDailyScore(date)
	if err != nil {
		return err
	}
	if done {
		log.Info().Msg("date already processed, skipping")
		return ErrAlreadyProcessed
	}

	channels := cfg.Channels()

	grid, err := s.SlotGrid(date, channels)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Msg("no slot data, nothing to learn")
		return ErrNoSlotData
	}
	if err != nil {
		return err
	}

	model, err := s.LoadModel(channels, cfg.Model.PriorAlpha, cfg.Model.PriorBeta)
	if errors.Is(err, store.ErrNotFound) {
		model, err = s.SeedModel(channels, cfg.Model.PriorAlpha, cfg.Model.PriorBeta)
	}
	if err != nil {
		return err
	}

	// Pre-update metrics: the order is the whole point.
	metrics := Calculate(grid, model,
		cfg.Model.AwakeStartHour*4, cfg.Model.AwakeEndHour*4, channels)

	updated := updateModel(model, grid, channels)

	priorRows, err := s.CountDailyScores()
	if err != nil {
		return err
	}
	trainDays := priorRows + 1
	isLearning := 0
	if trainDays <= cfg.Model.LearningDays {
		isLearning = 1
	}

	row := store.DailyScore{
		Date:           date,
		TrainDays:      trainDays,
		NLLPresence:    metrics.NLL["presence"],
		NLLFridge:      metrics.NLL["fridge"],
		NLLBathroom:    metrics.NLL["bathroom"],
		NLLDoor:        metrics.NLL["door"],
		NLLTotal:       metrics.NLLTotal,
		ExpectedCount:  metrics.ExpectedCount,
		ObservedCount:  metrics.ObservedCount,
		CountZ:         metrics.CountZ,
		CompositeZ:     0, // detector overwrites at 00:20
		AlertLevel:     0,
		AwAccuracy:     metrics.AwAccuracy,
		AwBalancedAcc:  metrics.AwBalancedAcc,
		AwActiveRecall: metrics.AwActiveRecall,
		IsLearning:     isLearning,
	}
	// Posteriors and score row land in one transaction: a crash between the
	// two would let the next run condition the same date twice.
	if err := s.CommitLearningDay(updated, date, row); err != nil {
		return fmt.Errorf("learner: persist day: %w", err)
	}

	log.Info().
		Int("train_days", trainDays).
		Float64("nll_total", metrics.NLLTotal).
		Int("is_learning", isLearning).
		Msg("daily learning complete")
	return nil
}

// updateModel conditions every cell on its observed bit, returning a new
// model. Each posterior's α+β grows by exactly 1.
func updateModel(model store.Model, grid map[string][]int, channels []string) store.Model {
	updated := make(store.Model, len(channels))
	for _, ch := range channels {
		src, bits := model[ch], grid[ch]
		next := make([]beta.Posterior, store.SlotsPerDay)
		for s := 0; s < store.SlotsPerDay; s++ {
			next[s] = src[s].UpdatePosterior(bits[s])
		}
		updated[ch] = next
	}
	return updated
}
