package heartbeat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const heartbeatTimeout = 10 * time.Second

// Client POSTs periodic health snapshots to an external VPS so an outside
// observer can detect this process going dark. An empty URL disables it.
type Client struct {
	url      string
	deviceID string
	client   *http.Client
	log      zerolog.Logger
}

// NewClient builds a heartbeat sender for the configured endpoint.
func NewClient(url, deviceID string, log zerolog.Logger) *Client {
	if url == "" {
		log.Info().Msg("heartbeat disabled, no url configured")
	}
	return &Client{
		url:      url,
		deviceID: deviceID,
		client:   &http.Client{Timeout: heartbeatTimeout},
		log:      log,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.url != "" }

// BuildPayload shapes one snapshot for the wire. Pure: no I/O.
func (c *Client) BuildPayload(m Metrics, collectorUp bool, now time.Time) map[string]any {
	var lastEventMinutes any
	if m.HasLastEvent {
		lastEventMinutes = m.LastEventAge.Minutes()
	}
	var cpuTemp any
	if m.HasCPUTemp {
		cpuTemp = m.CPUTemp
	}
	return map[string]any{
		"device_id":      c.deviceID,
		"timestamp":      now.UTC().Format(time.RFC3339),
		"uptime_seconds": m.UptimeSeconds,
		"system": map[string]any{
			"cpu_percent":    m.CPUPercent,
			"memory_percent": m.MemoryPercent,
			"disk_percent":   m.DiskPercent,
			"cpu_temp":       cpuTemp,
		},
		"services": map[string]any{
			"collector_up":           collectorUp,
			"db_size_mb":             m.DBSizeMB,
			"last_event_minutes_ago": lastEventMinutes,
			"today_event_count":      m.TodayEvents,
		},
	}
}

// Send delivers one heartbeat, reporting success. Failures are logged and
// never propagate; a dead VPS must not break the schedule.
func (c *Client) Send(m Metrics, collectorUp bool, now time.Time) bool {
	if !c.Enabled() {
		return false
	}
	payload, err := json.Marshal(c.BuildPayload(m, collectorUp, now))
	if err != nil {
		c.log.Error().Err(err).Msg("heartbeat encode failed")
		return false
	}
	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.log.Error().Err(err).Msg("heartbeat request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("heartbeat rejected")
		return false
	}
	c.log.Debug().Msg("heartbeat sent")
	return true
}
