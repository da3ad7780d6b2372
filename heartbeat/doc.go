// Package heartbeat covers process health: system metric collection, the
// periodic ping to an external VPS, and the local watchdog that turns bad
// readings into a caregiver-facing warning.
//
// Collection touches gopsutil and the store; threshold evaluation and alert
// formatting are pure functions over the collected Metrics so they can be
// tested without a live system.
package heartbeat
