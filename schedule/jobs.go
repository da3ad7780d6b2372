package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eldersentry/alerter"
	"eldersentry/collector"
	"eldersentry/config"
	"eldersentry/detector"
	"eldersentry/heartbeat"
	"eldersentry/learner"
	"eldersentry/store"
)

// pendingAlertMaxAgeDays bounds pending_alerts retention regardless of
// status.
const pendingAlertMaxAgeDays = 30

// Jobs carries everything the registered closures capture.
type Jobs struct {
	Store     *store.Store
	Config    *config.Config
	Manager   *alerter.Manager
	Heartbeat *heartbeat.Client
	// CollectorUp reports the ingestion transport status for the heartbeat
	// payload and the watchdog. nil means "assume up".
	CollectorUp func() bool
	Log         zerolog.Logger
}

func (j Jobs) collectorUp() bool {
	if j.CollectorUp == nil {
		return true
	}
	return j.CollectorUp()
}

// vacation reports the persisted vacation flag. During vacation the learning
// and alerting jobs stand down; ingestion, escalation of already-pending
// alerts, and maintenance keep running.
func (j Jobs) vacation() bool {
	return j.Store.VacationMode(j.Config.System.VacationMode)
}

// Register wires the full daily pipeline onto the scheduler. Triggers are
// local wall-clock; the fixed 00:05 → 00:15 → 00:20 ordering of fill →
// learn → score is what guarantees the scorer always sees yesterday's
// learner row.
func Register(s *Scheduler, j Jobs) error {
	channels := j.Config.Channels()

	jobs := []struct {
		id   string
		spec string
		run  func() error
	}{
		{"slot_aggregator", "0,15,30,45 * * * *", func() error {
			return collector.AggregateSlot(j.Store, channels, time.Now(), j.Log)
		}},

		{"fill_missing_slots", "5 0 * * *", func() error {
			return collector.FillYesterday(j.Store, channels, time.Now(), j.Log)
		}},

		{"daily_learning", "15 0 * * *", func() error {
			if j.vacation() {
				j.Log.Info().Msg("vacation mode, skipping learning")
				return nil
			}
			yesterday := time.Now().AddDate(0, 0, -1).Format(store.DateLayout)
			err := learner.Run(j.Store, j.Config, yesterday, j.Log)
			if errors.Is(err, learner.ErrAlreadyProcessed) || errors.Is(err, learner.ErrNoSlotData) {
				return nil
			}
			return err
		}},

		{"daily_scoring", "20 0 * * *", func() error {
			if j.vacation() {
				j.Log.Info().Msg("vacation mode, skipping scoring")
				return nil
			}
			now := time.Now()
			yesterday := now.AddDate(0, 0, -1).Format(store.DateLayout)
			if _, err := detector.ScoreDay(j.Store, j.Config, yesterday, j.Log); err != nil {
				if !errors.Is(err, detector.ErrNoScoreRow) {
					return err
				}
				return nil
			}
			if err := j.Manager.HandleDailyScore(yesterday, now); err != nil {
				return err
			}
			return j.Manager.HandleLearningMilestone(now)
		}},

		{"realtime_checks", "0,30 * * * *", func() error {
			if j.vacation() {
				return nil
			}
			now := time.Now()
			alerts, err := detector.RunRealtimeChecks(j.Store, j.Config, now)
			for _, a := range alerts {
				if herr := j.Manager.HandleRealtimeAlert(a, now); herr != nil && err == nil {
					err = herr
				}
			}
			return err
		}},

		{"daily_summary", "0 22 * * *", func() error {
			if j.vacation() {
				return nil
			}
			return j.Manager.HandleDailySummary(time.Now())
		}},

		{"escalation_check", "*/2 * * * *", func() error {
			return j.Manager.RunEscalationSweep(time.Now())
		}},

		{"telegram_poll", "@every 30s", func() error {
			return j.Manager.PollInbound(time.Now())
		}},

		{"nightly_maintenance", "0 3 * * *", func() error {
			now := time.Now()
			deleted, err := j.Store.CleanupOldEvents(j.Config.Database.RetentionDays, now)
			if err != nil {
				return err
			}
			purged, err := j.Store.PurgeOldPendingAlerts(pendingAlertMaxAgeDays, now)
			if err != nil {
				return err
			}
			j.Log.Info().Int64("events", deleted).Int64("pending_alerts", purged).
				Msg("nightly maintenance done")
			return j.Store.Maintenance()
		}},

		{"weekly_trend", "0 10 * * 0", func() error {
			return j.Manager.HandleWeeklyTrend(time.Now())
		}},
	}

	if j.Heartbeat != nil && j.Heartbeat.Enabled() {
		interval := j.Config.Heartbeat.IntervalSeconds
		if interval <= 0 {
			interval = 300
		}
		jobs = append(jobs,
			struct {
				id   string
				spec string
				run  func() error
			}{"heartbeat", fmt.Sprintf("@every %ds", interval), func() error {
				now := time.Now()
				m := heartbeat.Collect(j.Store, j.Config.Database.Path, now)
				j.Heartbeat.Send(m, j.collectorUp(), now)
				return nil
			}},
			struct {
				id   string
				spec string
				run  func() error
			}{"watchdog", "0 * * * *", func() error {
				now := time.Now()
				m := heartbeat.Collect(j.Store, j.Config.Database.Path, now)
				status := heartbeat.RunHealthChecks(m, j.collectorUp(), now)
				if text := heartbeat.FormatWatchdogAlert(status); text != "" {
					j.Manager.Broadcast(text)
				}
				return nil
			}},
		)
	}

	for _, job := range jobs {
		if err := s.Add(job.id, job.spec, job.run); err != nil {
			return err
		}
	}
	return nil
}
