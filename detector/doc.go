// Package detector turns raw daily metrics and recent events into risk.
//
// Three concerns live here:
//
//   - Daily scoring (00:20): combine the day's surprise (NLL z-score against
//     a rolling baseline of normal days) with the one-sided count risk into
//     composite_z, map it to an alert tier, and write both back onto the
//     daily_scores row. Risk is one-sided by construction: an unusually
//     good fit is not risk, and a noisy busy day is not risk.
//
//   - Real-time checks (every 30 min): morning vital sign, extended
//     silence inside the awake window, and bathroom fall suspicion driven
//     by the persisted last_bathroom_time episode marker.
//
//   - Long-horizon trends (Sunday): per-channel OLS slopes over daily event
//     counts, plus a warping-distance drift measure between weekly activity
//     profiles.
//
// The detector publishes exclusively to the store; the alerter re-reads from
// the store, so a crash between the two never loses an alert decision.
package detector
