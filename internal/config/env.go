package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables that override the file. Secrets usually live here.
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvAdminChatID    = "TELEGRAM_ADMIN_CHAT_ID"
	EnvReminderPeriod = "TELEGRAM_DEFAULT_REMINDER_PERIOD"
	EnvJiraURL        = "JIRA_URL"
	EnvJiraUsername   = "JIRA_USERNAME"
	EnvJiraPassword   = "JIRA_PASSWORD"
	EnvJiraToken      = "JIRA_TOKEN"
	EnvJiraQuery      = "JIRA_QUERY"
)

// ApplyEnv overlays environment values onto cfg. getenv is usually os.Getenv.
//
// TELEGRAM_ADMIN_CHAT_ID accepts a comma separated list.
// TELEGRAM_DEFAULT_REMINDER_PERIOD is a number of minutes.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(EnvTelegramToken, &cfg.Telegram.Token)
	str(EnvJiraURL, &cfg.Jira.URL)
	str(EnvJiraUsername, &cfg.Jira.Username)
	str(EnvJiraPassword, &cfg.Jira.Password)
	str(EnvJiraToken, &cfg.Jira.Token)
	str(EnvJiraQuery, &cfg.Jira.Query)

	if raw := strings.TrimSpace(getenv(EnvAdminChatID)); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAdminChatID, err)
		}
		cfg.Telegram.AdminChatIDs = ids
	}
	if raw := strings.TrimSpace(getenv(EnvReminderPeriod)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive number of minutes, got %q", EnvReminderPeriod, raw)
		}
		cfg.Reminder.DefaultInterval = strconv.Itoa(n) + "m"
	}
	return nil
}

func parseIDList(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
