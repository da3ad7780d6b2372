// Package eldersentry watches over an elderly person living alone by
// learning their daily routine from passive home sensors and alerting
// relatives when the pattern breaks.
//
// 🏠 What does eldersentry do?
//
//	A single Raspberry-Pi-class daemon that brings together:
//		• Collection: debounced sensor events bucketed into 15-minute slots
//		• Learning: per-slot Beta-Binomial activity posteriors, updated nightly
//		• Detection: daily anomaly scoring plus real-time silence & fall checks
//		• Alerting: tiered Telegram messages with rate limiting, acknowledgement
//		  buttons and a dead-man's-switch escalation to an emergency list
//		• Trends: weekly regression & profile-drift report for slow changes
//		• Ops: VPS heartbeat, local health watchdog, nightly DB maintenance
//
// ✨ Design principles
//
//   - Store-backed state – every counter that matters survives a restart
//   - Quiet by default – the first alert only after a week of training
//   - Degrade, don't die – a failed probe or send is logged, never fatal
//
// Everything is organized under focused subpackages:
//
//	beta/      — Beta-Binomial posterior math
//	collector/ — payload parsing, debouncing, slot aggregation
//	config/    — YAML configuration with env overrides and validation
//	store/     — SQLite persistence for events, slots, scores and state
//	learner/   — nightly posterior update and training-day bookkeeping
//	detector/  — daily scoring, real-time checks, trend & drift analysis
//	alerter/   — message templates, Telegram transport, alert manager
//	heartbeat/ — system metrics, VPS ping, health watchdog
//	schedule/  — cron wiring for the whole pipeline
//
// The binary lives in cmd/eldersentry; see config.yml.example for a full
// configuration walk-through.
package eldersentry
