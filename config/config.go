package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default file locations, overridable via ELDERSENTRY_CONFIG_PATH.
const (
	defaultPath  = "config.yml"
	fallbackPath = "config.yml.example"
)

// Environment variable names honoured by Load.
const (
	EnvConfigPath        = "ELDERSENTRY_CONFIG_PATH"
	EnvTelegramBotToken  = "ELDERSENTRY_TELEGRAM_BOT_TOKEN"
	EnvDashboardUsername = "ELDERSENTRY_DASHBOARD_USERNAME"
	EnvDashboardPassword = "ELDERSENTRY_DASHBOARD_PASSWORD"
	EnvDBPath            = "ELDERSENTRY_DB_PATH"
)

// DefaultChannels is the semantic channel set used when no sensors are
// configured. Per-channel daily score columns are fixed to this set.
var DefaultChannels = []string{"presence", "fridge", "bathroom", "door"}

// ErrInvalid indicates a configuration invariant violation; startup must
// fail fatally before any scheduler registration.
var ErrInvalid = errors.New("config: invalid configuration")

// MQTT holds ingestion seed settings (the transport itself lives outside
// this repository; the values are surfaced for the ingestion front end).
type MQTT struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Sensor describes one configured device and its semantic channel.
type Sensor struct {
	ID           string `yaml:"id"`
	Channel      string `yaml:"channel"`
	Type         string `yaml:"type"`
	TriggerValue string `yaml:"trigger_value"`
}

// Model holds the routine-learner parameters.
type Model struct {
	SlotMinutes    int     `yaml:"slot_minutes"`
	AwakeStartHour int     `yaml:"awake_start_hour"`
	AwakeEndHour   int     `yaml:"awake_end_hour"`
	LearningDays   int     `yaml:"learning_days"`
	PriorAlpha     float64 `yaml:"prior_alpha"`
	PriorBeta      float64 `yaml:"prior_beta"`
}

// Alerts holds scoring thresholds and real-time check parameters.
type Alerts struct {
	ZThresholdGentle      float64 `yaml:"z_threshold_gentle"`
	ZThresholdSerious     float64 `yaml:"z_threshold_serious"`
	ZThresholdEmergency   float64 `yaml:"z_threshold_emergency"`
	MinTrainDays          int     `yaml:"min_train_days"`
	MorningCheckHour      int     `yaml:"morning_check_hour"`
	SilenceThresholdHours int     `yaml:"silence_threshold_hours"`
	FallDetectionMinutes  int     `yaml:"fall_detection_minutes"` // 0 disables
}

// Telegram holds messenger credentials and escalation targets.
type Telegram struct {
	BotToken          string   `yaml:"bot_token"`
	ChatIDs           []string `yaml:"chat_ids"`
	EmergencyChatIDs  []string `yaml:"emergency_chat_ids"`
	EscalationMinutes int      `yaml:"escalation_minutes"`
}

// Heartbeat holds the VPS ping settings.
type Heartbeat struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	DeviceID        string `yaml:"device_id"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// Database holds store location and retention.
type Database struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Dashboard holds web credentials (the dashboard itself is external; the
// credentials participate in the production-safety invariant check).
type Dashboard struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// System holds cross-cutting flags and trend-report tuning.
type System struct {
	VacationMode           bool    `yaml:"vacation_mode"` // seed only; the persisted flag wins
	TrendAnalysisDays      int     `yaml:"trend_analysis_days"`
	TrendMinDays           int     `yaml:"trend_min_days"`
	TrendBathroomThreshold float64 `yaml:"trend_bathroom_threshold"`
	TrendPresenceThreshold float64 `yaml:"trend_presence_threshold"`
}

// Config is the closed configuration record. Read once, then immutable.
type Config struct {
	MQTT      MQTT      `yaml:"mqtt"`
	Sensors   []Sensor  `yaml:"sensors"`
	Model     Model     `yaml:"model"`
	Alerts    Alerts    `yaml:"alerts"`
	Telegram  Telegram  `yaml:"telegram"`
	Heartbeat Heartbeat `yaml:"heartbeat"`
	Database  Database  `yaml:"database"`
	Dashboard Dashboard `yaml:"dashboard"`
	System    System    `yaml:"system"`
}

// Default returns a Config populated with every documented default.
func Default() *Config {
	return &Config{
		MQTT: MQTT{Broker: "localhost", Port: 1883, TopicPrefix: "zigbee2mqtt"},
		Model: Model{
			SlotMinutes:    15,
			AwakeStartHour: 6,
			AwakeEndHour:   23,
			LearningDays:   14,
			PriorAlpha:     1.0,
			PriorBeta:      1.0,
		},
		Alerts: Alerts{
			ZThresholdGentle:      2.0,
			ZThresholdSerious:     3.0,
			ZThresholdEmergency:   4.0,
			MinTrainDays:          7,
			MorningCheckHour:      11,
			SilenceThresholdHours: 3,
			FallDetectionMinutes:  45,
		},
		Telegram:  Telegram{EscalationMinutes: 10},
		Heartbeat: Heartbeat{DeviceID: "eldersentry-pi", IntervalSeconds: 300},
		Database:  Database{Path: "./data/eldersentry.db", RetentionDays: 90},
		System: System{
			TrendAnalysisDays:      30,
			TrendMinDays:           14,
			TrendBathroomThreshold: 0.3,
			TrendPresenceThreshold: -0.3,
		},
	}
}

// Load reads and validates the configuration. An empty path triggers the
// documented resolution order. A missing file (including the fallback) yields
// the defaults, so a bare checkout still starts in a disabled-notifier mode.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = defaultPath
	}
	if _, err := os.Stat(path); err != nil {
		path = fallbackPath
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvTelegramBotToken); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv(EnvDashboardUsername); v != "" {
		cfg.Dashboard.Username = v
	}
	if v := os.Getenv(EnvDashboardPassword); v != "" {
		cfg.Dashboard.Password = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks structural invariants. Violations wrap ErrInvalid.
func (c *Config) Validate() error {
	if c.Model.SlotMinutes != 15 {
		return fmt.Errorf("%w: model.slot_minutes must be 15", ErrInvalid)
	}
	if c.Model.AwakeStartHour < 0 || c.Model.AwakeEndHour > 24 ||
		c.Model.AwakeStartHour >= c.Model.AwakeEndHour {
		return fmt.Errorf("%w: awake window [%d, %d) is not a valid hour range",
			ErrInvalid, c.Model.AwakeStartHour, c.Model.AwakeEndHour)
	}
	if c.Model.PriorAlpha <= 0 || c.Model.PriorBeta <= 0 {
		return fmt.Errorf("%w: beta prior must be positive", ErrInvalid)
	}
	if c.Alerts.ZThresholdGentle > c.Alerts.ZThresholdSerious ||
		c.Alerts.ZThresholdSerious > c.Alerts.ZThresholdEmergency {
		return fmt.Errorf("%w: alert thresholds must be non-decreasing", ErrInvalid)
	}
	if c.Database.RetentionDays <= 0 {
		return fmt.Errorf("%w: database.retention_days must be positive", ErrInvalid)
	}
	if c.Telegram.EscalationMinutes <= 0 {
		return fmt.Errorf("%w: telegram.escalation_minutes must be positive", ErrInvalid)
	}
	return nil
}

// Channels derives the channel list from configured sensors, falling back to
// DefaultChannels when no sensor declares one. Order is stable.
func (c *Config) Channels() []string {
	seen := make(map[string]bool, len(c.Sensors))
	var out []string
	for _, s := range c.Sensors {
		if s.Channel != "" && !seen[s.Channel] {
			seen[s.Channel] = true
			out = append(out, s.Channel)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultChannels...)
	}
	return out
}
