package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"eldersentry/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_MatchesDocumentedValues pins the documented defaults.
func TestDefault_MatchesDocumentedValues(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 15, cfg.Model.SlotMinutes)
	assert.Equal(t, 14, cfg.Model.LearningDays)
	assert.Equal(t, 1.0, cfg.Model.PriorAlpha)
	assert.Equal(t, 1.0, cfg.Model.PriorBeta)
	assert.Equal(t, 6, cfg.Model.AwakeStartHour)
	assert.Equal(t, 23, cfg.Model.AwakeEndHour)

	assert.Equal(t, 2.0, cfg.Alerts.ZThresholdGentle)
	assert.Equal(t, 3.0, cfg.Alerts.ZThresholdSerious)
	assert.Equal(t, 4.0, cfg.Alerts.ZThresholdEmergency)
	assert.Equal(t, 7, cfg.Alerts.MinTrainDays)
	assert.Equal(t, 11, cfg.Alerts.MorningCheckHour)
	assert.Equal(t, 3, cfg.Alerts.SilenceThresholdHours)
	assert.Equal(t, 45, cfg.Alerts.FallDetectionMinutes)

	assert.Equal(t, 10, cfg.Telegram.EscalationMinutes)
	assert.Equal(t, 90, cfg.Database.RetentionDays)
	assert.False(t, cfg.System.VacationMode)
}

// TestLoad_YAMLAndEnvOverride loads a file and verifies the env override wins.
func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	doc := `
model:
  learning_days: 10
alerts:
  morning_check_hour: 9
telegram:
  bot_token: from-file
  chat_ids: ["111"]
database:
  path: /tmp/from-file.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv(config.EnvTelegramBotToken, "from-env")
	t.Setenv(config.EnvDBPath, "/tmp/from-env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Model.LearningDays, "file value applied")
	assert.Equal(t, 9, cfg.Alerts.MorningCheckHour)
	assert.Equal(t, 15, cfg.Model.SlotMinutes, "untouched fields keep defaults")
	assert.Equal(t, "from-env", cfg.Telegram.BotToken, "env beats file")
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path, "env beats file")
	assert.Equal(t, []string{"111"}, cfg.Telegram.ChatIDs)
}

// TestLoad_MissingFileFallsBackToDefaults keeps a bare checkout bootable.
func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Telegram.BotToken, "notifier starts disabled")
	assert.Equal(t, 14, cfg.Model.LearningDays)
}

// TestValidate_RejectsBrokenInvariants covers the fatal-startup conditions.
func TestValidate_RejectsBrokenInvariants(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad slot size", func(c *config.Config) { c.Model.SlotMinutes = 30 }},
		{"inverted awake window", func(c *config.Config) { c.Model.AwakeStartHour = 23; c.Model.AwakeEndHour = 6 }},
		{"non-positive prior", func(c *config.Config) { c.Model.PriorAlpha = 0 }},
		{"descending thresholds", func(c *config.Config) { c.Alerts.ZThresholdGentle = 5.0 }},
		{"zero retention", func(c *config.Config) { c.Database.RetentionDays = 0 }},
		{"zero escalation", func(c *config.Config) { c.Telegram.EscalationMinutes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}
}

// TestChannels_DerivedFromSensors checks sensor-driven channels and fallback.
func TestChannels_DerivedFromSensors(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, []string{"presence", "fridge", "bathroom", "door"}, cfg.Channels(),
		"no sensors configured falls back to the default set")

	cfg.Sensors = []config.Sensor{
		{ID: "pir-1", Channel: "presence"},
		{ID: "pir-2", Channel: "presence"},
		{ID: "door-1", Channel: "door"},
		{ID: "misc", Channel: ""},
	}
	assert.Equal(t, []string{"presence", "door"}, cfg.Channels(),
		"deduplicated, ordered, empty channels skipped")
}
