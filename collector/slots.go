package collector

import (
	"time"

	"github.com/rs/zerolog"

	"eldersentry/store"
)

// Slot maps a wall-clock instant to its 15-minute bucket.
// 00:00 → 0, 06:00 → 24, 12:00 → 48, 23:45 → 95.
func Slot(t time.Time) int {
	return t.Hour()*4 + t.Minute()/15
}

// SlotTimeRange returns the [start, end) timestamps of the slot containing t.
// 10:37 → ("…T10:30:00", "…T10:45:00").
func SlotTimeRange(t time.Time) (string, string) {
	start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), (t.Minute()/15)*15, 0, 0, t.Location())
	return start.Format(store.TimeLayout), start.Add(15 * time.Minute).Format(store.TimeLayout)
}

// AggregateSlot summarises the just-completed slot into the grid. The job
// fires on the quarter-hour boundary, so the reference instant is now minus
// one minute: a run at 10:15 summarises the 10:00–10:15 window, not the one
// that has just begun. Every configured channel gets a row, zero when quiet.
func AggregateSlot(s *store.Store, channels []string, now time.Time, log zerolog.Logger) error {
	ref := now.Add(-time.Minute)
	date := ref.Format(store.DateLayout)
	slot := Slot(ref)
	from, to := SlotTimeRange(ref)

	counts, err := s.ChannelCountsBetween(from, to)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		count := counts[ch]
		active := 0
		if count > 0 {
			active = 1
		}
		cell := store.SlotCell{Date: date, Slot: slot, Channel: ch, Active: active, EventCount: count}
		if err := s.UpsertSlot(cell); err != nil {
			return err
		}
	}
	if len(counts) > 0 {
		log.Info().Str("date", date).Int("slot", slot).Int("channels", len(counts)).
			Msg("slot summary updated")
	}
	return nil
}

// FillYesterday zero-fills every missing (slot, channel) cell of the
// previous local day so the learner always sees a complete grid. Runs at
// 00:05.
func FillYesterday(s *store.Store, channels []string, now time.Time, log zerolog.Logger) error {
	date := now.AddDate(0, 0, -1).Format(store.DateLayout)
	if err := s.FillMissingSlots(date, channels); err != nil {
		return err
	}
	log.Info().Str("date", date).Int("channels", len(channels)).Msg("missing slots filled")
	return nil
}
