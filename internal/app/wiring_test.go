package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabot/internal/config"
	"slabot/internal/reminder"
	"slabot/internal/report"
)

func validConfig() *config.Config {
	cfg := &config.Config{
		Telegram: config.TelegramConfig{Token: "123:abc", AdminChatIDs: []int64{-500, -600}},
		Jira: config.JiraConfig{
			URL:      "https://jira.example.com",
			Username: "bot",
			Password: "secret",
			Query:    "project = OPS AND resolution = Unresolved",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestMapSettingsDefaults(t *testing.T) {
	t.Parallel()
	st, err := mapSettings(validConfig())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, st.defaultInterval)
	assert.Equal(t, 10*time.Second, st.minInterval)
	assert.Equal(t, reminder.ModeCheck, st.defaultMode)

	cfg := validConfig()
	cfg.Reminder.DefaultMode = "Broadcast"
	st, err = mapSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, reminder.ModeBroadcast, st.defaultMode)
}

func TestMapPredicate(t *testing.T) {
	t.Parallel()
	p, err := mapPredicate(validConfig())
	require.NoError(t, err)
	assert.IsType(t, report.RemainingBelowGoal{}, p)

	cfg := validConfig()
	cfg.Reminder.Urgency = config.UrgencyConfig{Rule: config.UrgencyFixedCutoff, Cutoff: "2h"}
	p, err = mapPredicate(cfg)
	require.NoError(t, err)
	assert.Equal(t, report.FixedCutoff{Cutoff: 2 * time.Hour}, p)
}

func TestMapRegistryConfig(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Reminder.Timezone = "UTC"
	rc, err := mapRegistryConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, rc.Location)
	assert.Equal(t, 45*time.Second, rc.TickTimeout)
	assert.Equal(t, 10*time.Second, rc.MinInterval)

	cfg.Reminder.Timezone = "Mars/Olympus"
	_, err = mapRegistryConfig(cfg)
	assert.Error(t, err)
}

func TestMapLogConfigTargetsFirstAdminChat(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Logging.Telegram.Enabled = true
	lc := mapLogConfig(cfg)
	assert.True(t, lc.Telegram.Enabled)
	assert.Equal(t, int64(-500), lc.Telegram.ChatID)
	assert.Equal(t, "info", lc.Level)
}

func TestValidateRejectsUnmappableConfig(t *testing.T) {
	t.Parallel()
	require.NoError(t, validate(context.Background(), validConfig()))

	cfg := validConfig()
	cfg.Reminder.DefaultMode = "shout"
	assert.Error(t, validate(context.Background(), cfg))

	cfg = validConfig()
	cfg.Reminder.Urgency.Rule = config.UrgencyFixedCutoff
	assert.Error(t, validate(context.Background(), cfg))

	cfg = validConfig()
	cfg.Storage.Driver = "sqlite"
	assert.Error(t, validate(context.Background(), cfg))
}

func TestReloadSettingsKeepsRunningMinimum(t *testing.T) {
	t.Parallel()
	cur := settings{defaultInterval: 30 * time.Minute, defaultMode: reminder.ModeCheck, minInterval: 10 * time.Second}

	cfg := validConfig()
	cfg.Reminder.MinInterval = "1s"
	cfg.Reminder.DefaultInterval = "2m"
	cfg.Reminder.DefaultMode = "broadcast"
	next, err := reloadSettings(cur, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, next.minInterval)
	assert.Equal(t, 2*time.Minute, next.defaultInterval)
	assert.Equal(t, reminder.ModeBroadcast, next.defaultMode)

	cfg.Reminder.DefaultInterval = "5s"
	_, err = reloadSettings(cur, cfg)
	assert.ErrorContains(t, err, "below the running min_interval")
}
