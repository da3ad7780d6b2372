package alerter

import (
	"fmt"
	"sort"
	"strings"
)

// ChannelLabels maps semantic channels to the human-readable names used in
// every outbound message.
var ChannelLabels = map[string]string{
	"presence": "Motion sensor",
	"fridge":   "Fridge",
	"bathroom": "Bathroom",
	"door":     "Front door",
}

func channelLabel(ch string) string {
	if label, ok := ChannelLabels[ch]; ok {
		return label
	}
	return ch
}

// RenderAlert builds the tiered daily-anomaly message. Level 0 renders to an
// empty string; unknown levels above 3 fall back to the emergency wording.
func RenderAlert(level int, date string, compositeZ float64, explanation string) string {
	switch {
	case level <= 0:
		return ""
	case level == 1:
		return fmt.Sprintf(
			"💛 <b>Heads up</b> — %s\n\n"+
				"Today's activity pattern differs from normal (score: %.1f).\n\n%s\n\n"+
				"ℹ️ Probably nothing to worry about, but it is worth keeping an eye on.",
			date, compositeZ, explanation)
	case level == 2:
		return fmt.Sprintf(
			"🟠 <b>Important warning</b> — %s\n\n"+
				"A clear activity anomaly was detected (score: %.1f).\n\n%s\n\n"+
				"📞 Please call and check in.",
			date, compositeZ, explanation)
	default:
		return fmt.Sprintf(
			"🔴 <b>EMERGENCY WARNING</b> — %s\n\n"+
				"A serious activity anomaly was detected (score: %.1f)!\n\n%s\n\n"+
				"🚨 Make contact NOW, or ask a neighbour to check in person!",
			date, compositeZ, explanation)
	}
}

// RenderDailySummary builds the 22:00 status digest. ciWidth is 0..1 and is
// shown as a percentage.
func RenderDailySummary(date string, compositeZ float64, alertLevel, trainDays int,
	ciWidth float64, eventCounts map[string]int) string {

	var status string
	switch alertLevel {
	case 0:
		status = "✅ Everything looks normal."
	case 1:
		status = "💛 A mild deviation was detected."
	case 2:
		status = "🟠 A clear anomaly was detected."
	default:
		status = "🔴 A serious anomaly was detected!"
	}

	total := 0
	channels := make([]string, 0, len(eventCounts))
	for ch, n := range eventCounts {
		total += n
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var lines strings.Builder
	for _, ch := range channels {
		fmt.Fprintf(&lines, "  • %s: %d\n", channelLabel(ch), eventCounts[ch])
	}

	return fmt.Sprintf(
		"🏠 <b>Daily summary</b> — %s\n\n%s\n\n"+
			"📊 Anomaly score: <b>%.1f</b>\n"+
			"📈 Confidence interval: ±%.0f%%\n"+
			"🔢 Total events: %d\n%s"+
			"🧠 Training: day %d",
		date, status, compositeZ, ciWidth*100.0, total, lines.String(), trainDays)
}

// RenderMorningSilence builds the no-activity-yet morning alert.
// checkTime is "HH:MM".
func RenderMorningSilence(checkTime string) string {
	return fmt.Sprintf(
		"☀️ <b>Morning check</b>\n\n"+
			"No sensor has registered any movement today as of %s.\n\n"+
			"📞 Please call and check in.", checkTime)
}

// RenderExtendedSilence wraps a detector silence finding for delivery.
func RenderExtendedSilence(detail string) string {
	return fmt.Sprintf(
		"⏰ <b>Extended silence</b>\n\n%s\n\n📞 Please check in.", detail)
}

// RenderFallSuspicion wraps a stuck-bathroom finding for delivery.
func RenderFallSuspicion(detail string) string {
	return fmt.Sprintf(
		"🔴 <b>Fall suspicion</b>\n\n%s\n\n"+
			"🚨 Make contact NOW, or ask a neighbour to check in person!", detail)
}

// RenderLearningProgress builds the day-7 milestone message.
func RenderLearningProgress(date string, trainDays int, ciWidth float64, extra string) string {
	return fmt.Sprintf(
		"🧠 <b>Learning update</b> — %s\n\n"+
			"The system is on training day %d. Confidence interval: ±%.0f%%\n\n%s",
		date, trainDays, ciWidth*100.0, extra)
}

// RenderLearningComplete builds the day-14 completion message.
func RenderLearningComplete(confidence float64) string {
	return fmt.Sprintf(
		"🎉 <b>System ready!</b>\n\n"+
			"The 14-day learning period is complete. Confidence: %.0f%%\n\n"+
			"You will now be notified automatically about unusual activity.",
		confidence)
}

// RenderBatteryWarning builds the low-battery one-shot warning.
func RenderBatteryWarning(sensorID string, battery int) string {
	return fmt.Sprintf(
		"🔋 <b>Low battery</b>\n\n"+
			"Sensor <b>%s</b> battery level is critical: <b>%d%%</b>\n\n"+
			"Please replace the battery soon.", sensorID, battery)
}

// RenderEscalation prefixes an unacknowledged alert for the emergency list.
func RenderEscalation(original string) string {
	return "🚨 <b>ESCALATION — no acknowledgement received</b>\n\n" + original
}

// RenderWeeklyTrend builds the Sunday long-horizon report from the list of
// flagged concerns.
func RenderWeeklyTrend(date string, concerns []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📉 <b>Weekly trend report</b> — %s\n", date)
	for _, c := range concerns {
		fmt.Fprintf(&b, "\n⚠️ %s", c)
	}
	b.WriteString("\n\nℹ️ Slow changes like these can be worth mentioning to a doctor.")
	return b.String()
}

// RenderHelp lists the inbound commands.
func RenderHelp() string {
	return "🏠 <b>Commands</b>\n\n" +
		"/status — System status\n" +
		"/today — Today's event counts\n" +
		"/vacation — Enable vacation mode\n" +
		"/home — Disable vacation mode\n" +
		"/help — This message"
}

// RenderStatus builds the /status reply.
func RenderStatus(vacation bool, trainDays int, learning bool, lastEvent string) string {
	vacationText := "OFF"
	if vacation {
		vacationText = "ON"
	}
	phase := "Active"
	if learning {
		phase = "Learning"
	}
	if lastEvent == "" {
		lastEvent = "none"
	}
	return fmt.Sprintf(
		"📊 <b>System status</b>\n\n"+
			"Vacation mode: %s\nTraining day: %d\nPhase: %s\nLast event: %s",
		vacationText, trainDays, phase, lastEvent)
}

// RenderToday builds the /today reply.
func RenderToday(date string, counts map[string]int) string {
	if len(counts) == 0 {
		return "No events recorded yet today."
	}
	channels := make([]string, 0, len(counts))
	total := 0
	for ch, n := range counts {
		channels = append(channels, ch)
		total += n
	}
	sort.Strings(channels)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Today's events</b> — %s\n", date)
	for _, ch := range channels {
		fmt.Fprintf(&b, "\n  %s: %d", channelLabel(ch), counts[ch])
	}
	fmt.Fprintf(&b, "\n\nTotal: %d", total)
	return b.String()
}
