package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"eldersentry/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testChannels = []string{"presence", "fridge", "bathroom", "door"}

// TestOpen_MigratesOnce verifies the schema version and idempotent reopen.
func TestOpen_MigratesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := store.Open(path, zerolog.Nop())
	require.NoError(t, err)
	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v, "both migrations applied")
	require.NoError(t, s.Close())

	// Second open must not re-apply anything.
	s2, err := store.Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
	v, err = s2.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

// TestSystemState_RoundTripAndVacation covers the KV layer and the
// persisted-wins rule for vacation mode.
func TestSystemState_RoundTripAndVacation(t *testing.T) {
	s := openTestStore(t)

	v, err := s.GetState("missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, s.SetState("k", "v1"))
	require.NoError(t, s.SetState("k", "v2"))
	v, err = s.GetState("k", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", v, "upsert replaces")

	assert.True(t, s.VacationMode(true), "config seed applies while unset")
	require.NoError(t, s.SetVacationMode(false))
	assert.False(t, s.VacationMode(true), "persisted flag beats seed")
	require.NoError(t, s.SetVacationMode(true))
	assert.True(t, s.VacationMode(false))
}

// TestSlotGrid_ZeroFillAndFillMissing exercises the grid loader and the
// 00:05 zero-fill pass.
func TestSlotGrid_ZeroFillAndFillMissing(t *testing.T) {
	s := openTestStore(t)
	date := "2026-03-01"

	_, err := s.SlotGrid(date, testChannels)
	assert.ErrorIs(t, err, store.ErrNotFound, "no rows at all")

	require.NoError(t, s.UpsertSlot(store.SlotCell{Date: date, Slot: 30, Channel: "presence", Active: 1, EventCount: 4}))
	require.NoError(t, s.UpsertSlot(store.SlotCell{Date: date, Slot: 31, Channel: "fridge", Active: 1, EventCount: 1}))

	grid, err := s.SlotGrid(date, testChannels)
	require.NoError(t, err)
	assert.Equal(t, 1, grid["presence"][30])
	assert.Equal(t, 1, grid["fridge"][31])
	assert.Equal(t, 0, grid["presence"][31], "missing rows read as 0")
	assert.Len(t, grid["door"], store.SlotsPerDay, "absent channel still zero-filled")

	require.NoError(t, s.FillMissingSlots(date, testChannels))
	grid, err = s.SlotGrid(date, testChannels)
	require.NoError(t, err)
	assert.Equal(t, 1, grid["presence"][30], "existing rows preserved by INSERT OR IGNORE")
}

// TestDailyScores_RoundTripAndScorerUpdate checks insert, read, the
// idempotence guard and the scorer's in-place update.
func TestDailyScores_RoundTripAndScorerUpdate(t *testing.T) {
	s := openTestStore(t)

	d := store.DailyScore{
		Date: "2026-03-01", TrainDays: 5,
		NLLPresence: 10, NLLFridge: 11, NLLBathroom: 12, NLLDoor: 13, NLLTotal: 46,
		ExpectedCount: 40.5, ObservedCount: 38, CountZ: -0.4,
		AwAccuracy: 0.9, AwBalancedAcc: 0.8, AwActiveRecall: 0.7,
		IsLearning: 1,
	}
	require.NoError(t, s.InsertDailyScore(d))

	ok, err := s.HasDailyScore("2026-03-01")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.DailyScoreFor("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.Equal(t, 11.0, got.NLLFor("fridge"))

	require.NoError(t, s.UpdateScore("2026-03-01", 4.2, 3))
	got, err = s.DailyScoreFor("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 4.2, got.CompositeZ)
	assert.Equal(t, 3, got.AlertLevel)

	n, err := s.CountDailyScores()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestNormalNLLHistory_Filters verifies the baseline query ignores anomalous
// days, learning days and the target date itself.
func TestNormalNLLHistory_Filters(t *testing.T) {
	s := openTestStore(t)

	insert := func(date string, nll float64, level, learning int) {
		require.NoError(t, s.InsertDailyScore(store.DailyScore{
			Date: date, NLLTotal: nll, AlertLevel: level, IsLearning: learning,
		}))
	}
	insert("2026-03-01", 50, 0, 0)
	insert("2026-03-02", 51, 0, 0)
	insert("2026-03-03", 90, 2, 0) // anomalous: excluded
	insert("2026-03-04", 49, 0, 1) // learning: excluded
	insert("2026-03-05", 52, 0, 0) // target: excluded

	hist, err := s.NormalNLLHistory(30, "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, []float64{51, 50}, hist, "newest first, filtered")
}

// TestModel_SeedSaveLoad covers first seeding, persistence and reload.
func TestModel_SeedSaveLoad(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadModel(testChannels, 1, 1)
	assert.ErrorIs(t, err, store.ErrNotFound, "empty table")

	model, err := s.SeedModel(testChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, model["presence"][0].Alpha)

	model["presence"][10] = model["presence"][10].UpdatePosterior(1)
	require.NoError(t, s.SaveModel(model, "2026-03-01"))

	loaded, err := s.LoadModel(testChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, loaded["presence"][10].Alpha, "update persisted")
	assert.Equal(t, 1.0, loaded["presence"][10].Beta)
	assert.Equal(t, 1.0, loaded["door"][95].Alpha, "untouched cells keep prior")

	w, err := s.AverageCIWidth()
	require.NoError(t, err)
	assert.Greater(t, w, 0.0)
	assert.Less(t, w, 1.0)
}

// TestCommitLearningDay_Atomic covers the single-transaction day commit: the
// happy path lands both writes, and a duplicate date rolls both back so no
// posterior is ever conditioned twice for one day.
func TestCommitLearningDay_Atomic(t *testing.T) {
	s := openTestStore(t)

	model, err := s.SeedModel(testChannels, 1, 1)
	require.NoError(t, err)

	model["presence"][10] = model["presence"][10].UpdatePosterior(1)
	row := store.DailyScore{Date: "2026-03-01", TrainDays: 1, IsLearning: 1}
	require.NoError(t, s.CommitLearningDay(model, "2026-03-01", row))

	loaded, err := s.LoadModel(testChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, loaded["presence"][10].Alpha, "posterior committed")
	ok, err := s.HasDailyScore("2026-03-01")
	require.NoError(t, err)
	assert.True(t, ok, "score row committed")

	// Same date again, with a further-conditioned model: the strict insert
	// must fail and leave the model exactly as the first commit wrote it.
	model["presence"][10] = model["presence"][10].UpdatePosterior(1)
	err = s.CommitLearningDay(model, "2026-03-01", row)
	require.Error(t, err, "duplicate date rejected")

	loaded, err = s.LoadModel(testChannels, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, loaded["presence"][10].Alpha, "rolled back, not 3.0")
	n, err := s.CountDailyScores()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "still one score row")
}

// TestEvents_CountsAndRetention covers range counting, last-event lookup,
// channel grouping, the zero-filled trend calendar and retention cleanup.
func TestEvents_CountsAndRetention(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	add := func(ts, channel string) {
		require.NoError(t, s.InsertEvent(store.SensorEvent{
			Timestamp: ts, SensorID: "sen-1", Channel: channel,
			EventType: "state_change", Value: "on",
		}))
	}
	add("2026-03-10T08:00:00", "presence")
	add("2026-03-10T09:30:00", "fridge")
	add("2026-03-09T22:00:00", "presence")
	add("2025-11-01T10:00:00", "door") // far past, should be retained out

	n, err := s.CountEventsBetween("2026-03-10T00:00:00", "2026-03-10T12:00:00")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	last, err := s.LastEventTime("2026-03-10T00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10T09:30:00", last)

	_, err = s.LastEventTime("2026-03-11T00:00:00")
	assert.ErrorIs(t, err, store.ErrNotFound)

	counts, err := s.ChannelCountsBetween("2026-03-10T00:00:00", "2026-03-11T00:00:00")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"presence": 1, "fridge": 1}, counts)

	daily, err := s.DailyChannelCounts("presence", 3, now)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, daily, "calendar zero-fill, chronological")

	deleted, err := s.CleanupOldEvents(90, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted, "only the far-past event dropped")
}

// TestPendingAlerts_Lifecycle walks a row through pending → escalated and
// verifies acknowledged rows never regress.
func TestPendingAlerts_Lifecycle(t *testing.T) {
	s := openTestStore(t)

	a := store.PendingAlert{
		ID: "id-1", Level: 3, Message: "check in",
		Timestamp: "2026-03-10T12:00:00", Status: store.StatusPending,
	}
	require.NoError(t, s.InsertPendingAlert(a))

	due, err := s.DuePendingAlerts("2026-03-10T11:59:00")
	require.NoError(t, err)
	assert.Empty(t, due, "not due yet")

	due, err = s.DuePendingAlerts("2026-03-10T12:10:00")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "id-1", due[0].ID)

	ok, err := s.EscalatePendingAlert("id-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.EscalatePendingAlert("id-1")
	require.NoError(t, err)
	assert.False(t, ok, "escalation flips exactly once")

	ok, err = s.AcknowledgePendingAlert("id-1")
	require.NoError(t, err)
	assert.False(t, ok, "late ack cannot rewrite an escalated row")

	got, err := s.PendingAlertByID("id-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusEscalated, got.Status)

	// Purge drops old rows regardless of status.
	n, err := s.PurgeOldPendingAlerts(30, time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// TestPendingAlerts_AckWhilePending is the happy acknowledgement path.
func TestPendingAlerts_AckWhilePending(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertPendingAlert(store.PendingAlert{
		ID: "id-2", Level: 3, Message: "m", Timestamp: "2026-03-10T12:00:00",
		Status: store.StatusPending,
	}))

	ok, err := s.AcknowledgePendingAlert("id-2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.EscalatePendingAlert("id-2")
	require.NoError(t, err)
	assert.False(t, ok, "acknowledged rows never escalate")
}
