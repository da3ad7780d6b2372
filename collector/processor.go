package collector

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eldersentry/config"
	"eldersentry/store"
)

const (
	debounceWindow = 30 * time.Second
	staleAfter     = time.Hour
	sweepEvery     = 100 // Ingest calls between stale-entry sweeps

	batteryWarnAt  = 10 // percent, one-shot warning threshold
	batteryResetAt = 20 // percent, above this the warning re-arms
)

// BatteryWarning is handed to the battery callback when a sensor first drops
// to a critical level.
type BatteryWarning struct {
	SensorID string
	Battery  int
}

// Processor normalises raw sensor payloads into accepted SensorEvent rows.
// Safe for concurrent use: ingestion callbacks arrive on transport threads.
type Processor struct {
	store *store.Store
	log   zerolog.Logger

	mu            sync.Mutex
	lastEvent     map[string]time.Time
	ingestCount   int
	batteryLevels map[string]int
	batteryWarned map[string]bool
	onBattery     func(BatteryWarning)
}

// NewProcessor builds an ingestion processor over the store.
func NewProcessor(s *store.Store, log zerolog.Logger) *Processor {
	return &Processor{
		store:         s,
		log:           log,
		lastEvent:     make(map[string]time.Time),
		batteryLevels: make(map[string]int),
		batteryWarned: make(map[string]bool),
	}
}

// SetBatteryCallback registers the low-battery notification hook.
func (p *Processor) SetBatteryCallback(fn func(BatteryWarning)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onBattery = fn
}

// ParsePayload decodes one raw payload for a sensor of the given type.
// Motion sensors report occupancy; contact sensors report contact, where
// contact=false means the door is open (the magnet has separated). Both JSON
// and bare-string forms are accepted. ok=false means the format was not
// recognised and the payload must be skipped.
func (p *Processor) ParsePayload(sensorType, triggerValue string, payload []byte) (active bool, value string, ok bool) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return false, "", false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err == nil {
		return p.parseJSON(data, sensorType, triggerValue)
	}
	return p.parseString(text, sensorType, triggerValue)
}

func (p *Processor) parseJSON(data map[string]any, sensorType, triggerValue string) (bool, string, bool) {
	switch sensorType {
	case "motion":
		if v, present := data["occupancy"]; present {
			active, _ := v.(bool)
			if active {
				return true, "on", true
			}
			return false, "off", true
		}
	case "contact":
		if v, present := data["contact"]; present {
			contact, _ := v.(bool)
			isOpen := !contact
			if triggerValue == "open" {
				return isOpen, openClosed(isOpen), true
			}
			return contact, openClosed(isOpen), true
		}
	}
	p.log.Warn().Str("type", sensorType).Msg("unrecognised json payload")
	return false, "", false
}

func (p *Processor) parseString(text, sensorType, triggerValue string) (bool, string, bool) {
	lower := strings.ToLower(text)
	switch sensorType {
	case "motion":
		switch lower {
		case "on", "true":
			return true, "on", true
		case "off", "false":
			return false, "off", true
		}
	case "contact":
		switch lower {
		case "open":
			return triggerValue == "open", "open", true
		case "closed":
			return triggerValue != "open", "closed", true
		}
	}
	p.log.Warn().Str("type", sensorType).Str("text", text).Msg("unrecognised string payload")
	return false, "", false
}

func openClosed(isOpen bool) string {
	if isOpen {
		return "open"
	}
	return "closed"
}

// debounced reports whether an event from sensorID inside the debounce
// window must be dropped, recording the timestamp when accepted. Also runs
// the periodic stale-entry sweep. Caller holds mu.
func (p *Processor) debounced(sensorID string, now time.Time) bool {
	p.ingestCount++
	if p.ingestCount%sweepEvery == 0 {
		cutoff := now.Add(-staleAfter)
		for id, ts := range p.lastEvent {
			if ts.Before(cutoff) {
				delete(p.lastEvent, id)
			}
		}
	}

	if last, seen := p.lastEvent[sensorID]; seen && now.Sub(last) < debounceWindow {
		return true
	}
	p.lastEvent[sensorID] = now
	return false
}

// Ingest runs the full pipeline for one raw payload: battery watch, parse,
// activation-edge filter, debounce, event insert, and bathroom episode
// marker maintenance. Returns whether an event row was written. The store
// write is the only blocking operation; everything else is in-memory.
func (p *Processor) Ingest(sensor config.Sensor, payload []byte, now time.Time) (bool, error) {
	if w := p.CheckBattery(sensor.ID, payload); w != nil {
		p.mu.Lock()
		fn := p.onBattery
		p.mu.Unlock()
		if fn != nil {
			fn(*w)
		}
	}

	active, value, ok := p.ParsePayload(sensor.Type, sensor.TriggerValue, payload)
	if !ok || !active {
		// Only the activation edge is recorded; releases carry no routine
		// information.
		return false, nil
	}

	p.mu.Lock()
	dropped := p.debounced(sensor.ID, now)
	p.mu.Unlock()
	if dropped {
		p.log.Debug().Str("sensor_id", sensor.ID).Msg("debounced repeat event")
		return false, nil
	}

	ts := now.Format(store.TimeLayout)
	err := p.store.InsertEvent(store.SensorEvent{
		Timestamp: ts,
		SensorID:  sensor.ID,
		Channel:   sensor.Channel,
		EventType: "state_change",
		Value:     value,
	})
	if err != nil {
		return false, err
	}

	// The fall check watches for a bathroom visit with no movement anywhere
	// else afterwards: set the marker on bathroom activity, clear it on any
	// other channel.
	if sensor.Channel == "bathroom" {
		err = p.store.SetState(store.KeyLastBathroomTime, ts)
	} else {
		err = p.store.ClearState(store.KeyLastBathroomTime)
	}
	return true, err
}

// CheckBattery inspects a JSON payload for a battery field. The first
// reading at or below 10% returns a warning; further low readings stay
// silent until the level recovers above 20% (battery replaced).
func (p *Processor) CheckBattery(sensorID string, payload []byte) *BatteryWarning {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil
	}
	raw, present := data["battery"]
	if !present {
		return nil
	}
	level, isNumber := raw.(float64)
	if !isNumber {
		return nil
	}
	battery := int(level)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.batteryLevels[sensorID] = battery

	if battery > batteryResetAt {
		p.batteryWarned[sensorID] = false
		return nil
	}
	if battery <= batteryWarnAt && !p.batteryWarned[sensorID] {
		p.batteryWarned[sensorID] = true
		p.log.Warn().Str("sensor_id", sensorID).Int("battery", battery).Msg("low battery")
		return &BatteryWarning{SensorID: sensorID, Battery: battery}
	}
	return nil
}
