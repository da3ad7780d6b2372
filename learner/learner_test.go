package learner_test

import (
	"path/filepath"
	"testing"

	"eldersentry/config"
	"eldersentry/learner"
	"eldersentry/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*store.Store, *config.Config) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "learner.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, config.Default()
}

// seedDay writes a day's slot rows: the listed slots active on "presence",
// everything else filled with zeros.
func seedDay(t *testing.T, s *store.Store, date string, activeSlots []int) {
	t.Helper()
	for _, slot := range activeSlots {
		require.NoError(t, s.UpsertSlot(store.SlotCell{
			Date: date, Slot: slot, Channel: "presence", Active: 1, EventCount: 2,
		}))
	}
	require.NoError(t, s.FillMissingSlots(date, config.DefaultChannels))
}

// TestRun_FirstDaySeedsModelAndWritesScore is the cold-start path.
func TestRun_FirstDaySeedsModelAndWritesScore(t *testing.T) {
	s, cfg := newFixture(t)
	seedDay(t, s, "2026-03-01", []int{30, 31, 48})

	require.NoError(t, learner.Run(s, cfg, "2026-03-01", zerolog.Nop()))

	row, err := s.DailyScoreFor("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, row.TrainDays)
	assert.Equal(t, 1, row.IsLearning)
	assert.Equal(t, 0.0, row.CompositeZ, "scorer has not run yet")
	assert.Equal(t, 0, row.AlertLevel)
	assert.Equal(t, 3, row.ObservedCount)
	assert.Greater(t, row.NLLTotal, 0.0)

	// Posteriors were updated AFTER metrics: active slots gained α.
	model, err := s.LoadModel(config.DefaultChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, model["presence"][30].Alpha)
	assert.Equal(t, 1.0, model["presence"][30].Beta)
	assert.Equal(t, 2.0, model["presence"][0].Beta, "inactive slot gained β")
}

// TestRun_MetricsUsePreUpdateModel: NLL on day 2 must reflect the model as
// of day 1's close, not the post-update state.
func TestRun_MetricsUsePreUpdateModel(t *testing.T) {
	s, cfg := newFixture(t)

	seedDay(t, s, "2026-03-01", []int{10})
	require.NoError(t, learner.Run(s, cfg, "2026-03-01", zerolog.Nop()))

	seedDay(t, s, "2026-03-02", []int{10})
	require.NoError(t, learner.Run(s, cfg, "2026-03-02", zerolog.Nop()))

	row1, err := s.DailyScoreFor("2026-03-01")
	require.NoError(t, err)
	row2, err := s.DailyScoreFor("2026-03-02")
	require.NoError(t, err)

	// Day 2 sees Beta(2,1) at slot 10 (mean 2/3 > 1/2) so repeating the same
	// pattern is less surprising than it was to the uniform prior.
	assert.Less(t, row2.NLLTotal, row1.NLLTotal)
	assert.Equal(t, 2, row2.TrainDays)
}

// TestRun_IsIdempotentPerDate reruns a date and checks no side effects.
func TestRun_IsIdempotentPerDate(t *testing.T) {
	s, cfg := newFixture(t)
	seedDay(t, s, "2026-03-01", []int{5})
	require.NoError(t, learner.Run(s, cfg, "2026-03-01", zerolog.Nop()))

	model1, err := s.LoadModel(config.DefaultChannels, 1, 1)
	require.NoError(t, err)

	err = learner.Run(s, cfg, "2026-03-01", zerolog.Nop())
	assert.ErrorIs(t, err, learner.ErrAlreadyProcessed)

	model2, err := s.LoadModel(config.DefaultChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, model1, model2, "rerun must not touch the model")

	n, err := s.CountDailyScores()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestRun_NoSlotDataIsANoOp returns the missing-data sentinel.
func TestRun_NoSlotDataIsANoOp(t *testing.T) {
	s, cfg := newFixture(t)
	err := learner.Run(s, cfg, "2026-03-01", zerolog.Nop())
	assert.ErrorIs(t, err, learner.ErrNoSlotData)

	n, err := s.CountDailyScores()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestRun_PosteriorMassGrowsDaily: every processed day adds exactly 1 to
// α+β of every cell.
func TestRun_PosteriorMassGrowsDaily(t *testing.T) {
	s, cfg := newFixture(t)

	dates := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	for i, date := range dates {
		seedDay(t, s, date, []int{i})
		require.NoError(t, learner.Run(s, cfg, date, zerolog.Nop()))

		model, err := s.LoadModel(config.DefaultChannels, 1, 1)
		require.NoError(t, err)
		for _, ch := range config.DefaultChannels {
			for slot := 0; slot < store.SlotsPerDay; slot++ {
				mass := model[ch][slot].Alpha + model[ch][slot].Beta
				assert.Equal(t, float64(2+i+1), mass,
					"day %d channel %s slot %d", i+1, ch, slot)
			}
		}
	}
}

// TestRun_LearningFlagFlipsAfterWindow: day 15 of a 14-day window is no
// longer a learning day.
func TestRun_LearningFlagFlipsAfterWindow(t *testing.T) {
	s, cfg := newFixture(t)
	cfg.Model.LearningDays = 2

	for i, date := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		seedDay(t, s, date, []int{i})
		require.NoError(t, learner.Run(s, cfg, date, zerolog.Nop()))
	}

	row, err := s.DailyScoreFor("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, row.IsLearning, "day 2 of 2 still learning")

	row, err = s.DailyScoreFor("2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 0, row.IsLearning, "day 3 past the window")
}
