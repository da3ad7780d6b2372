package detector

import (
	"errors"
	"fmt"
	"time"

	"eldersentry/config"
	"eldersentry/store"
)

// Real-time alert types.
const (
	TypeMorningSilence  = "morning_silence"
	TypeExtendedSilence = "extended_silence"
	TypeFallSuspicion   = "fall_suspicion"
)

// RealtimeAlert is the outcome of one real-time evaluator. Each check
// produces at most one per invocation.
type RealtimeAlert struct {
	Type          string
	Level         int
	Message       string
	LastEventTime string // TimeLayout; empty when not applicable
}

// CheckMorningVitalSign fires a serious alert when no event at all has been
// recorded since local midnight by the morning check hour. Active only
// inside [morning_check_hour, awake_end_hour).
func CheckMorningVitalSign(s *store.Store, cfg *config.Config, now time.Time) (*RealtimeAlert, error) {
	if now.Hour() < cfg.Alerts.MorningCheckHour {
		return nil, nil
	}
	if now.Hour() >= cfg.Model.AwakeEndHour {
		return nil, nil
	}

	midnight := now.Format(store.DateLayout) + "T00:00:00"
	n, err := s.CountEventsBetween(midnight, now.Format(store.TimeLayout))
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, nil
	}

	return &RealtimeAlert{
		Type:  TypeMorningSilence,
		Level: LevelSerious,
		Message: fmt.Sprintf("No sensor activity at all since %d:00 this morning.",
			cfg.Alerts.MorningCheckHour),
	}, nil
}

// CheckExtendedSilence fires a gentle alert when the newest event of the day
// is at least silence_threshold_hours old. Only evaluated inside the awake
// window; a day with no events at all is left to the morning check.
func CheckExtendedSilence(s *store.Store, cfg *config.Config, now time.Time) (*RealtimeAlert, error) {
	if now.Hour() < cfg.Model.AwakeStartHour || now.Hour() >= cfg.Model.AwakeEndHour {
		return nil, nil
	}

	midnight := now.Format(store.DateLayout) + "T00:00:00"
	last, err := s.LastEventTime(midnight)
	if errors.Is(err, store.ErrNotFound) {
		// No events today: either the morning check owns it already, or it
		// is too early to tell. Never duplicate that alert here.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lastAt, err := time.ParseInLocation(store.TimeLayout, last, now.Location())
	if err != nil {
		return nil, nil // unparseable timestamp, skip this cycle
	}

	silence := now.Sub(lastAt)
	threshold := time.Duration(cfg.Alerts.SilenceThresholdHours) * time.Hour
	if silence < threshold {
		return nil, nil
	}

	return &RealtimeAlert{
		Type:  TypeExtendedSilence,
		Level: LevelGentle,
		Message: fmt.Sprintf("No sensor activity for the last %.1f hours.",
			silence.Hours()),
		LastEventTime: last,
	}, nil
}

// CheckFallSuspicion fires an emergency alert when the persisted bathroom
// episode marker has been stuck for fall_detection_minutes: the person
// entered the bathroom and no other room has seen them since. The marker is
// cleared on fire so each episode alerts at most once. Disabled entirely
// when fall_detection_minutes is 0.
func CheckFallSuspicion(s *store.Store, cfg *config.Config, now time.Time) (*RealtimeAlert, error) {
	if cfg.Alerts.FallDetectionMinutes <= 0 {
		return nil, nil
	}

	raw, err := s.GetState(store.KeyLastBathroomTime, "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	enteredAt, err := time.ParseInLocation(store.TimeLayout, raw, now.Location())
	if err != nil {
		// Corrupt marker: drop it rather than alert forever.
		return nil, s.ClearState(store.KeyLastBathroomTime)
	}

	threshold := time.Duration(cfg.Alerts.FallDetectionMinutes) * time.Minute
	if now.Sub(enteredAt) < threshold {
		return nil, nil
	}

	if err := s.ClearState(store.KeyLastBathroomTime); err != nil {
		return nil, err
	}

	return &RealtimeAlert{
		Type:  TypeFallSuspicion,
		Level: LevelEmergency,
		Message: fmt.Sprintf("Bathroom entered at %s with no movement elsewhere for %d minutes — possible fall.",
			enteredAt.Format("15:04"), cfg.Alerts.FallDetectionMinutes),
		LastEventTime: raw,
	}, nil
}

// RunRealtimeChecks evaluates all three checks in order and collects their
// alerts. Errors from one check do not suppress the others.
func RunRealtimeChecks(s *store.Store, cfg *config.Config, now time.Time) ([]RealtimeAlert, error) {
	var alerts []RealtimeAlert
	var firstErr error

	checks := []func(*store.Store, *config.Config, time.Time) (*RealtimeAlert, error){
		CheckMorningVitalSign,
		CheckExtendedSilence,
		CheckFallSuspicion,
	}
	for _, check := range checks {
		a, err := check(s, cfg, now)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts, firstErr
}
