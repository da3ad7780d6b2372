// Package store owns every durable entity of the watcher: raw sensor events,
// the 15-minute slot grid, daily scores, Beta posteriors, the system
// key/value state and pending (unacknowledged) alerts.
//
// The backing store is a single SQLite file opened through the pure-Go
// modernc.org/sqlite driver in WAL mode with a 5-second busy timeout. Schema
// creation runs through versioned transactional migrations recorded in the
// schema_version table; Open is idempotent and safe to call on every start.
//
// Timestamps are wall-clock local time serialized as "2006-01-02T15:04:05";
// dates as "2006-01-02". String comparison therefore matches chronological
// order, which the range queries rely on.
//
// Every read and write is a short transaction. Callers keep no authoritative
// in-memory state: rate-limit cursors, the vacation flag and the bathroom
// episode marker all live in system_state so a process restart cannot
// desynchronise them.
package store
