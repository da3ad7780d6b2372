package alerter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eldersentry/config"
	"eldersentry/detector"
	"eldersentry/store"
)

const (
	cooldown          = 6 * time.Hour
	morningMaxPerDay  = 2
	fullMaturityDays  = 15
	realtimeMaturity  = 15 // assumed train_days for real-time should-send checks
	ackPayloadPrefix  = "ack_"
	summaryCIFallback = 0.05

	// weeklyDriftThreshold flags a routine-shape change in the Sunday
	// report. Profiles are per-slot activity rates, so the warp distance is
	// in accumulated rate units across the 96-slot day.
	weeklyDriftThreshold = 6.0
)

// Manager is the notification decision engine. One instance lives for the
// whole process; its in-memory rate cache is rebuilt from the store lazily
// after restart.
type Manager struct {
	store    *store.Store
	cfg      *config.Config
	notifier Notifier
	log      zerolog.Logger

	mu         sync.Mutex
	lastEmit   map[int]time.Time
	rateLoaded bool
}

// NewManager wires the decision engine to its store and transport.
func NewManager(s *store.Store, cfg *config.Config, n Notifier, log zerolog.Logger) *Manager {
	return &Manager{
		store:    s,
		cfg:      cfg,
		notifier: n,
		log:      log,
		lastEmit: make(map[int]time.Time),
	}
}

// ---------------------------------------------------------------------------
// Rate limiting

// loadRateState rebuilds the in-memory map from the persisted
// "level:timestamp;level:timestamp" string. Unparseable pairs are discarded
// with a warning. Caller holds mu.
func (m *Manager) loadRateState() {
	m.rateLoaded = true
	raw, err := m.store.GetState(store.KeyAlertRateState, "")
	if err != nil || raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ";") {
		lvlStr, tsStr, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		lvl, err := strconv.Atoi(lvlStr)
		if err != nil {
			m.log.Warn().Str("pair", pair).Msg("discarding unparseable rate-limit entry")
			continue
		}
		ts, err := time.ParseInLocation(store.TimeLayout, tsStr, time.Local)
		if err != nil {
			m.log.Warn().Str("pair", pair).Msg("discarding unparseable rate-limit entry")
			continue
		}
		m.lastEmit[lvl] = ts
	}
}

// saveRateState persists the map. Levels are sorted so the stored string is
// deterministic. Caller holds mu.
func (m *Manager) saveRateState() {
	levels := make([]int, 0, len(m.lastEmit))
	for lvl := range m.lastEmit {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	parts := make([]string, 0, len(levels))
	for _, lvl := range levels {
		parts = append(parts, fmt.Sprintf("%d:%s", lvl, m.lastEmit[lvl].Format(store.TimeLayout)))
	}
	if err := m.store.SetState(store.KeyAlertRateState, strings.Join(parts, ";")); err != nil {
		m.log.Error().Err(err).Msg("persisting rate-limit state failed")
	}
}

// ShouldSend decides whether an alert of the given level may go out now.
//
// Rules, in order: level 0 never; below min_train_days never; below 15
// training days only level 1; an escalation to a tier higher than anything
// sent before always passes; otherwise a 6-hour per-level cooldown applies.
// Each permit records and persists the emit time.
func (m *Manager) ShouldSend(level, trainDays int, now time.Time) bool {
	if level <= 0 {
		return false
	}
	if trainDays < m.cfg.Alerts.MinTrainDays {
		return false
	}
	if trainDays < fullMaturityDays && level > 1 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rateLoaded {
		m.loadRateState()
	}

	lastMax := 0
	for lvl := range m.lastEmit {
		if lvl > lastMax {
			lastMax = lvl
		}
	}
	if level > lastMax && lastMax > 0 {
		m.lastEmit[level] = now
		m.saveRateState()
		return true
	}

	if last, ok := m.lastEmit[level]; ok && now.Sub(last) < cooldown {
		return false
	}
	m.lastEmit[level] = now
	m.saveRateState()
	return true
}

// ShouldSendMorning enforces the per-day morning-silence cap. The counter is
// persisted as "date:count" so a restart mid-morning cannot double the quota.
func (m *Manager) ShouldSendMorning(date string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	raw, err := m.store.GetState(store.KeyMorningAlertCount, "")
	if err == nil && raw != "" {
		if d, c, ok := strings.Cut(raw, ":"); ok && d == date {
			count, _ = strconv.Atoi(c)
		}
	}
	if count >= morningMaxPerDay {
		return false
	}
	if err := m.store.SetState(store.KeyMorningAlertCount,
		fmt.Sprintf("%s:%d", date, count+1)); err != nil {
		m.log.Error().Err(err).Msg("persisting morning counter failed")
	}
	return true
}

// ---------------------------------------------------------------------------
// Explanation generation

// Explanation builds a human-readable reason for the day's anomaly by
// comparing per-channel NLL against the historical mean over normal,
// post-learning days. Channels whose ratio exceeds 1.5 are named; a strongly
// negative count z adds a low-activity sentence.
func (m *Manager) Explanation(date string) string {
	row, err := m.store.DailyScoreFor(date)
	if err != nil {
		return "No detailed information is available."
	}
	hist, err := m.store.NormalChannelAverages(date)
	if err != nil || hist.N < 3 {
		return "Not enough history yet for a detailed breakdown."
	}

	var lines []string
	for _, ch := range config.DefaultChannels {
		avg := hist.For(ch)
		if avg <= 0 {
			continue
		}
		if row.NLLFor(ch)/avg > 1.5 {
			lines = append(lines,
				fmt.Sprintf("%s activity is much lower than expected.", channelLabel(ch)))
		}
	}
	if row.CountZ < -2.0 {
		lines = append(lines,
			fmt.Sprintf("Total activity is very low (%d events, expected ≈ %.0f).",
				row.ObservedCount, row.ExpectedCount))
	}
	if len(lines) == 0 {
		return "The overall activity pattern differs from normal."
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Handlers

// HandleDailyScore re-reads the scored row for date and emits the tiered
// alert when the level is positive and the rate limiter permits. Emergency
// tiers go out with an acknowledgement button; the rest as plain broadcasts.
func (m *Manager) HandleDailyScore(date string, now time.Time) error {
	row, err := m.store.DailyScoreFor(date)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if row.AlertLevel <= 0 || !m.ShouldSend(row.AlertLevel, row.TrainDays, now) {
		return nil
	}

	text := RenderAlert(row.AlertLevel, date, row.CompositeZ, m.Explanation(date))
	if text == "" {
		return nil
	}
	if row.AlertLevel >= detector.LevelEmergency {
		if _, err := m.EmitWithAck(text, row.AlertLevel, now); err != nil {
			return err
		}
	} else {
		m.notifier.SendToAll(text)
	}
	m.log.Info().Str("date", date).Int("level", row.AlertLevel).Msg("daily alert sent")
	return nil
}

// HandleRealtimeAlert routes one detector finding. Morning silence uses the
// per-day cap, fall suspicion the dead-man's switch, extended silence the
// general limiter with an assumed mature model.
func (m *Manager) HandleRealtimeAlert(a detector.RealtimeAlert, now time.Time) error {
	switch a.Type {
	case detector.TypeMorningSilence:
		if !m.ShouldSendMorning(now.Format(store.DateLayout)) {
			return nil
		}
		m.notifier.SendToAll(RenderMorningSilence(now.Format("15:04")))
		m.log.Info().Msg("morning silence alert sent")

	case detector.TypeFallSuspicion:
		if !m.ShouldSend(a.Level, realtimeMaturity, now) {
			return nil
		}
		if _, err := m.EmitWithAck(RenderFallSuspicion(a.Message), a.Level, now); err != nil {
			return err
		}
		m.log.Info().Msg("fall suspicion alert sent")

	case detector.TypeExtendedSilence:
		if !m.ShouldSend(a.Level, realtimeMaturity, now) {
			return nil
		}
		m.notifier.SendToAll(RenderExtendedSilence(a.Message))
		m.log.Info().Msg("extended silence alert sent")
	}
	return nil
}

// HandleDailySummary sends the 22:00 digest for today. A missing score row
// (learning has not yet produced one for today) reports zeros; the CI width
// comes from the live posteriors when they exist, otherwise from the
// max(0.05, 1/train_days) placeholder.
func (m *Manager) HandleDailySummary(now time.Time) error {
	today := now.Format(store.DateLayout)

	var compositeZ float64
	var alertLevel, trainDays int
	if row, err := m.store.DailyScoreFor(today); err == nil {
		compositeZ, alertLevel, trainDays = row.CompositeZ, row.AlertLevel, row.TrainDays
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	counts, err := m.store.ChannelCountsBetween(today+"T00:00:00", today+"T23:59:59")
	if err != nil {
		return err
	}

	ciWidth, err := m.ciWidth(trainDays)
	if err != nil {
		return err
	}

	m.notifier.SendToAll(RenderDailySummary(today, compositeZ, alertLevel, trainDays, ciWidth, counts))
	m.log.Info().Str("date", today).Msg("daily summary sent")
	return nil
}

// ciWidth reports the mean posterior credible-interval width, falling back to
// the max(0.05, 1/train_days) placeholder while model_state is still empty.
func (m *Manager) ciWidth(trainDays int) (float64, error) {
	w, err := m.store.AverageCIWidth()
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	denom := trainDays
	if denom < 1 {
		denom = 1
	}
	w = 1.0 / float64(denom)
	if w < summaryCIFallback {
		w = summaryCIFallback
	}
	return w, nil
}

// HandleLearningMilestone sends a one-shot progress notice when yesterday
// closed training day 7 or 14. Runs right after scoring, so "yesterday" is
// the row the learner just wrote.
func (m *Manager) HandleLearningMilestone(now time.Time) error {
	yesterday := now.AddDate(0, 0, -1).Format(store.DateLayout)
	row, err := m.store.DailyScoreFor(yesterday)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch row.TrainDays {
	case 7:
		ciWidth, err := m.ciWidth(row.TrainDays)
		if err != nil {
			return err
		}
		m.notifier.SendToAll(RenderLearningProgress(yesterday, 7, ciWidth,
			"First week complete! Basic alerts are now active."))
		m.log.Info().Msg("learning milestone sent: day 7")
	case 14:
		ciWidth, err := m.ciWidth(row.TrainDays)
		if err != nil {
			return err
		}
		m.notifier.SendToAll(RenderLearningComplete((1.0 - ciWidth) * 100.0))
		m.log.Info().Msg("learning milestone sent: day 14")
	}
	return nil
}

// Broadcast sends an already-rendered message to every registered chat.
// Used for system-level notices (battery, watchdog) that bypass the anomaly
// rate limiter.
func (m *Manager) Broadcast(text string) {
	m.notifier.SendToAll(text)
}

// HandleWeeklyTrend runs the long-horizon regression report: per-channel
// daily-count slopes over trend_analysis_days, plus the warp distance
// between this week's and last month's activity profiles. A message goes out
// only when a watched slope crosses its configured threshold.
func (m *Manager) HandleWeeklyTrend(now time.Time) error {
	trends, err := detector.AllTrends(m.store, m.cfg.Channels(),
		m.cfg.System.TrendAnalysisDays, m.cfg.System.TrendMinDays, now)
	if err != nil {
		return err
	}

	var concerns []string
	if slope, ok := trends["bathroom"]; ok && slope > m.cfg.System.TrendBathroomThreshold {
		concerns = append(concerns, fmt.Sprintf(
			"Bathroom visits are rising steadily (%.2f more per day each day).", slope))
	}
	if slope, ok := trends["presence"]; ok && slope < m.cfg.System.TrendPresenceThreshold {
		concerns = append(concerns, fmt.Sprintf(
			"Overall movement is declining steadily (%.2f fewer events per day each day).", slope))
	}

	drift, err := detector.WeeklyProfileDrift(m.store, m.cfg.Channels(), now)
	switch {
	case errors.Is(err, detector.ErrShortBaseline):
		// Not enough history yet; slopes alone decide.
	case err != nil:
		return err
	case drift > weeklyDriftThreshold:
		concerns = append(concerns,
			"The shape of the daily routine has shifted noticeably compared to the previous weeks.")
	}

	if len(concerns) == 0 {
		m.log.Info().Msg("weekly trend report: nothing to flag")
		return nil
	}
	m.notifier.SendToAll(RenderWeeklyTrend(now.Format(store.DateLayout), concerns))
	m.log.Info().Int("concerns", len(concerns)).Msg("weekly trend report sent")
	return nil
}

// ---------------------------------------------------------------------------
// Acknowledgement and escalation

// EmitWithAck persists a pending alert and sends it with an acknowledgement
// button to every registered chat. The row is written before the first send,
// so even a total transport failure leaves a record for the escalation sweep.
func (m *Manager) EmitWithAck(message string, level int, now time.Time) (string, error) {
	id := uuid.NewString()
	err := m.store.InsertPendingAlert(store.PendingAlert{
		ID:        id,
		Level:     level,
		Message:   message,
		Timestamp: now.Format(store.TimeLayout),
		Status:    store.StatusPending,
	})
	if err != nil {
		return "", err
	}
	for _, chatID := range m.cfg.Telegram.ChatIDs {
		m.notifier.SendWithAck(chatID, message, id)
	}
	m.log.Info().Str("alert_id", id).Int("level", level).Msg("ack-required alert emitted")
	return id, nil
}

// HandleAckCallback processes one inline-button press. Only registered chats
// may acknowledge; strangers get a reply (to clear the button spinner) but
// the alert stays pending.
func (m *Manager) HandleAckCallback(chatID, payload, callbackID string) error {
	id, ok := strings.CutPrefix(payload, ackPayloadPrefix)
	if !ok {
		return nil
	}
	if !m.authorized(chatID) {
		m.log.Warn().Str("chat_id", chatID).Msg("ack from unregistered chat ignored")
		m.notifier.AnswerCallback(callbackID, "Understood.")
		return nil
	}

	flipped, err := m.store.AcknowledgePendingAlert(id)
	if err != nil {
		return err
	}
	if flipped {
		m.notifier.AnswerCallback(callbackID, "Acknowledged, thank you.")
		m.log.Info().Str("alert_id", id).Str("chat_id", chatID).Msg("alert acknowledged")
	} else {
		m.notifier.AnswerCallback(callbackID, "Already handled.")
	}
	return nil
}

// RunEscalationSweep pages the emergency list about every alert still
// pending past escalation_minutes, flipping each to escalated exactly once.
// With no emergency recipients configured the sweep is a strict no-op and
// rows stay pending.
func (m *Manager) RunEscalationSweep(now time.Time) error {
	if len(m.cfg.Telegram.EmergencyChatIDs) == 0 {
		return nil
	}
	cutoff := now.Add(-time.Duration(m.cfg.Telegram.EscalationMinutes) * time.Minute).
		Format(store.TimeLayout)
	due, err := m.store.DuePendingAlerts(cutoff)
	if err != nil {
		return err
	}

	for _, a := range due {
		text := RenderEscalation(a.Message)
		for _, chatID := range m.cfg.Telegram.EmergencyChatIDs {
			m.notifier.Send(chatID, text)
		}
		if _, err := m.store.EscalatePendingAlert(a.ID); err != nil {
			return err
		}
		m.log.Warn().Str("alert_id", a.ID).Msg("unacknowledged alert escalated")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inbound commands

// PollInbound drains new messenger updates, dispatching acknowledgement
// callbacks and chat commands, then persists the advanced offset. Commands
// from unregistered chats are dropped.
func (m *Manager) PollInbound(now time.Time) error {
	raw, err := m.store.GetState(store.KeyTelegramLastOffset, "0")
	if err != nil {
		return err
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		offset = 0
	}

	updates, newOffset := m.notifier.PollInbound(offset)
	for _, u := range updates {
		if u.Payload != "" {
			if err := m.HandleAckCallback(u.ChatID, u.Payload, u.CallbackID); err != nil {
				m.log.Error().Err(err).Msg("ack callback failed")
			}
			continue
		}
		if strings.HasPrefix(u.Text, "/") && m.authorized(u.ChatID) {
			m.handleCommand(u.ChatID, u.Text, now)
		}
	}

	if newOffset != offset {
		return m.store.SetState(store.KeyTelegramLastOffset, strconv.FormatInt(newOffset, 10))
	}
	return nil
}

func (m *Manager) authorized(chatID string) bool {
	for _, id := range m.cfg.Telegram.ChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (m *Manager) handleCommand(chatID, text string, now time.Time) {
	command := strings.ToLower(strings.Fields(text)[0])
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}

	switch command {
	case "/help", "/start":
		m.notifier.Send(chatID, RenderHelp())

	case "/status":
		trainDays, learning := 0, true
		if row, err := m.store.LatestScore(); err == nil {
			trainDays = row.TrainDays
			learning = row.IsLearning == 1
		}
		lastEvent, _ := m.store.LastEventTime("")
		vacation := m.store.VacationMode(m.cfg.System.VacationMode)
		m.notifier.Send(chatID, RenderStatus(vacation, trainDays, learning, lastEvent))

	case "/today":
		today := now.Format(store.DateLayout)
		counts, err := m.store.ChannelCountsBetween(today+"T00:00:00", today+"T23:59:59")
		if err != nil {
			return
		}
		m.notifier.Send(chatID, RenderToday(today, counts))

	case "/vacation":
		if err := m.store.SetVacationMode(true); err != nil {
			return
		}
		m.notifier.Send(chatID,
			"Vacation mode is <b>on</b>.\nAlerts are paused. Send /home when you are back.")

	case "/home":
		if err := m.store.SetVacationMode(false); err != nil {
			return
		}
		m.notifier.Send(chatID,
			"Vacation mode is <b>off</b>.\nNormal monitoring has resumed.")
	}
}
