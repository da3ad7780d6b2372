// Package collector is the ingestion front end: it normalises raw sensor
// payloads into accepted events and folds them into the 15-minute slot grid
// the learner consumes.
//
// The MQTT transport itself lives outside this repository; any client can
// hand Processor.Ingest the raw payload bytes for a configured sensor. The
// processor applies a per-sensor debounce, records only activation edges,
// watches battery levels, and maintains the bathroom episode marker for the
// fall-suspicion check.
package collector
