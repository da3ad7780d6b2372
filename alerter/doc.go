// Package alerter is the notification decision engine: it turns persisted
// daily scores and real-time detector findings into messenger traffic.
//
// The package has three layers:
//
//   - Notifier — transport abstraction over the messenger (Telegram Bot API
//     or a disabled stand-in when no token is configured).
//   - Templates — pure render functions; no store access, input in,
//     HTML-formatted string out.
//   - Manager — rate limiting, explanation generation, the dead-man's-switch
//     acknowledgement flow, and inbound command handling.
//
// All authoritative state (rate-limit timestamps, morning counters, the
// inbound offset cursor, pending acknowledgements) lives in the store, so a
// process restart never resets a cooldown or loses a pending escalation.
package alerter
