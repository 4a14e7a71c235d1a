package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
telegram:
  token: "123:abc"
  admin_chat_ids: [-1001]
jira:
  url: "https://jira.example.com"
  username: "bot"
  password: "secret"
  query: "project = OPS AND status = Open"
reminder:
  default_interval: "15m"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func noEnv(string) string { return "" }

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", yamlConfig), WithEnv(noEnv))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{-1001}, cfg.Telegram.AdminChatIDs)
	assert.Equal(t, int64(-1001), cfg.LogChatID())
	assert.Equal(t, "15m", cfg.Reminder.DefaultInterval)
	assert.Equal(t, DefaultSLAField, cfg.Jira.SLAField)
	assert.Equal(t, DefaultBroadcastInterval, cfg.Reminder.BroadcastInterval)
	assert.Equal(t, UrgencyRemainingBelowGoal, cfg.Reminder.Urgency.Rule)
	assert.Equal(t, "none", cfg.Storage.Driver)
	assert.Same(t, cfg, m.Get())
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()
	body := `
[telegram]
token = "t"
admin_chat_ids = [1, 2]

[jira]
url = "https://jira.example.com"
token = "pat"
query = "assignee is EMPTY"

[reminder.urgency]
rule = "fixed_cutoff"
cutoff = "1h"
`
	cfg, err := NewManager(writeFile(t, "config.toml", body), WithEnv(noEnv)).Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AdminChatIDs)
	assert.Equal(t, UrgencyFixedCutoff, cfg.Reminder.Urgency.Rule)
	assert.Equal(t, "1h", cfg.Reminder.Urgency.Cutoff)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "config.json", `{"telegram":{"token":"x"},"plugins":{}}`)
	_, _, err := NewManager(p, WithEnv(noEnv)).Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugins")
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "config.json", `{} {}`)
	_, _, err := NewManager(p, WithEnv(noEnv)).Parse()
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		EnvTelegramToken:  "from-env",
		EnvAdminChatID:    "10, 20",
		EnvReminderPeriod: "45",
		EnvJiraPassword:   "env-secret",
	}
	m := NewManager(writeFile(t, "config.yaml", yamlConfig), WithEnv(func(k string) string { return env[k] }))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []int64{10, 20}, cfg.Telegram.AdminChatIDs)
	assert.Equal(t, "45m", cfg.Reminder.DefaultInterval)
	assert.Equal(t, "env-secret", cfg.Jira.Password)
}

func TestEnvRejectsBadValues(t *testing.T) {
	t.Parallel()
	var cfg Config
	err := ApplyEnv(&cfg, func(k string) string {
		if k == EnvAdminChatID {
			return "12,abc"
		}
		return ""
	})
	require.Error(t, err)

	err = ApplyEnv(&cfg, func(k string) string {
		if k == EnvReminderPeriod {
			return "-3"
		}
		return ""
	})
	require.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Jira: JiraConfig{URL: "not a url"},
		Reminder: ReminderConfig{
			DefaultInterval: "5s",
			MinInterval:     "10s",
			DefaultMode:     "loud",
			Urgency:         UrgencyConfig{Rule: UrgencyFixedCutoff},
		},
		Storage: StorageConfig{Driver: "sqlite"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"telegram.token is required",
		"jira.url must be an absolute URL",
		"either token or username+password",
		"jira.query is required",
		"below min_interval",
		"default_mode",
		"cutoff is required",
		"storage.path is required",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateRejectsFractionalInterval(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.Reminder.DefaultInterval = "1500ms"
	cfg.Reminder.MinInterval = "1s"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whole number of seconds")
}

func TestReloadPublishesOnlyChangedValidConfig(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "config.yaml", yamlConfig)
	m := NewManager(p, WithEnv(noEnv))
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx := context.Background()
	assert.False(t, m.reload(ctx), "same content must not publish")

	require.NoError(t, os.WriteFile(p, []byte(strings.Replace(yamlConfig, "15m", "20m", 1)), 0o600))
	require.True(t, m.reload(ctx))
	got := <-ch
	assert.Equal(t, "20m", got.Reminder.DefaultInterval)

	require.NoError(t, os.WriteFile(p, []byte(strings.Replace(yamlConfig, `token: "123:abc"`, `token: ""`, 1)), 0o600))
	assert.False(t, m.reload(ctx), "invalid config must be rejected")
	assert.Equal(t, "20m", m.Get().Reminder.DefaultInterval)
}

func TestWatchPicksUpFileChange(t *testing.T) {
	p := writeFile(t, "config.yaml", yamlConfig)
	m := NewManager(p, WithEnv(noEnv), WithDebounce(20*time.Millisecond))
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte(strings.Replace(yamlConfig, "15m", "25m", 1)), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "25m", cfg.Reminder.DefaultInterval)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	a := &Config{}
	a.ApplyDefaults()
	b := *a
	b.Telegram.AdminChatIDs = []int64{5}
	b.Logging.Level = "debug"
	b.Storage.Driver = "sqlite"

	ch := Summarize(a, &b)
	assert.Equal(t, []string{"telegram.access", "logging", "storage"}, ch.Sections)
	assert.Equal(t, []string{"storage"}, ch.NeedsRestart)
	assert.True(t, Summarize(a, a).Empty())
}
