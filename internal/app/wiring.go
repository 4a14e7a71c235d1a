package app

import (
	"fmt"
	"strings"
	"time"

	"slabot/internal/config"
	"slabot/internal/notify"
	"slabot/internal/reminder"
	"slabot/internal/report"
	"slabot/internal/storage"
	"slabot/internal/tracker"
	logx "slabot/pkg/logx"
)

// settings are the hot-reloadable command defaults.
type settings struct {
	defaultInterval time.Duration
	defaultMode     reminder.Mode
	minInterval     time.Duration
}

func mapSettings(cfg *config.Config) (settings, error) {
	r := cfg.Reminder
	def, err := config.ParseDurationOrDefault("reminder.default_interval", r.DefaultInterval, 30*time.Minute)
	if err != nil {
		return settings{}, err
	}
	minIv, err := config.ParseDurationOrDefault("reminder.min_interval", r.MinInterval, 10*time.Second)
	if err != nil {
		return settings{}, err
	}
	mode := reminder.ModeCheck
	if strings.TrimSpace(r.DefaultMode) != "" {
		if mode, err = reminder.ParseMode(r.DefaultMode); err != nil {
			return settings{}, fmt.Errorf("reminder.default_mode: %w", err)
		}
	}
	return settings{defaultInterval: def, defaultMode: mode, minInterval: minIv}, nil
}

// reloadSettings maps cfg for a hot reload. The minimum interval is enforced
// by the registry, which reads it once at startup, so cur's minimum is kept
// and a new default below it is rejected.
func reloadSettings(cur settings, cfg *config.Config) (settings, error) {
	next, err := mapSettings(cfg)
	if err != nil {
		return settings{}, err
	}
	next.minInterval = cur.minInterval
	if next.defaultInterval < next.minInterval {
		return settings{}, fmt.Errorf("reminder.default_interval %s is below the running min_interval %s", next.defaultInterval, next.minInterval)
	}
	return next, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     cfg.LogChatID(),
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapTrackerConfig(cfg *config.Config) (tracker.Config, error) {
	j := cfg.Jira
	timeout, err := config.ParseDurationOrDefault("jira.timeout", j.Timeout, 20*time.Second)
	if err != nil {
		return tracker.Config{}, err
	}
	return tracker.Config{
		BaseURL:   j.URL,
		BrowseURL: j.BrowseURL,
		Username:  j.Username,
		Password:  j.Password,
		Token:     j.Token,
		SLAField:  j.SLAField,
		PageSize:  j.MaxResults,
		Timeout:   timeout,
	}, nil
}

func mapPredicate(cfg *config.Config) (report.Predicate, error) {
	u := cfg.Reminder.Urgency
	cutoff, err := config.ParseDurationField("reminder.urgency.cutoff", u.Cutoff)
	if err != nil {
		return nil, err
	}
	return report.NewPredicate(u.Rule, cutoff)
}

func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	timeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 15*time.Second)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{RatePerSec: cfg.Notifier.RatePerSec, SendTimeout: timeout}, nil
}

func mapLocation(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Reminder.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("reminder.timezone: %w", err)
	}
	return loc, nil
}

func mapRegistryConfig(cfg *config.Config) (reminder.Config, error) {
	loc, err := mapLocation(cfg)
	if err != nil {
		return reminder.Config{}, err
	}
	minIv, err := config.ParseDurationOrDefault("reminder.min_interval", cfg.Reminder.MinInterval, 10*time.Second)
	if err != nil {
		return reminder.Config{}, err
	}
	tickTimeout, err := config.ParseDurationOrDefault("reminder.tick_timeout", cfg.Reminder.TickTimeout, 45*time.Second)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{Location: loc, MinInterval: minIv, TickTimeout: tickTimeout}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}, nil
}
