package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps the cron runner with the project's job discipline:
// local-time triggers, per-job serial-self skipping, panic recovery, and
// error logging that never aborts the schedule.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New builds a stopped scheduler.
func New(log zerolog.Logger) *Scheduler {
	cronLog := &cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(
				cron.SkipIfStillRunning(cronLog),
				cron.Recover(cronLog),
			),
		),
		log: log,
	}
}

// Add registers one job under a stable id. The job's error is logged and
// swallowed: a failed cycle must not prevent subsequent jobs.
func (s *Scheduler) Add(id, spec string, job func() error) error {
	log := s.log.With().Str("job", id).Logger()
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(); err != nil {
			log.Error().Err(err).Msg("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: register %s (%q): %w", id, spec, err)
	}
	log.Info().Str("spec", spec).Msg("job registered")
	return nil
}

// Start begins dispatching. Returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts dispatch and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// JobCount reports the number of registered entries.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// cronLogger adapts zerolog to the cron logging interface; skip/recover
// messages surface as warnings because both indicate something abnormal.
type cronLogger struct {
	log zerolog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Warn().Fields(fieldsOf(keysAndValues)).Msg(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(fieldsOf(keysAndValues)).Msg(msg)
}

func fieldsOf(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
