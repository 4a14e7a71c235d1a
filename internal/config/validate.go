package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add(errors.New("telegram.token is required"))
	}
	_, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout)
	add(err)

	if u, err := url.Parse(strings.TrimSpace(c.Jira.URL)); err != nil || u.Scheme == "" || u.Host == "" {
		add(fmt.Errorf("jira.url must be an absolute URL, got %q", c.Jira.URL))
	}
	if c.Jira.Token == "" && (c.Jira.Username == "" || c.Jira.Password == "") {
		add(errors.New("jira: either token or username+password is required"))
	}
	if strings.TrimSpace(c.Jira.Query) == "" {
		add(errors.New("jira.query is required"))
	}
	_, err = ParseDurationField("jira.timeout", c.Jira.Timeout)
	add(err)

	r := c.Reminder
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			add(fmt.Errorf("reminder.timezone: %w", err))
		}
	}
	def, err := ParseDurationField("reminder.default_interval", r.DefaultInterval)
	add(err)
	minIv, err := ParseDurationField("reminder.min_interval", r.MinInterval)
	add(err)
	if def > 0 && def%time.Second != 0 {
		add(errors.New("reminder.default_interval must be a whole number of seconds"))
	}
	if def > 0 && minIv > 0 && def < minIv {
		add(fmt.Errorf("reminder.default_interval %s is below min_interval %s", def, minIv))
	}
	_, err = ParseDurationField("reminder.broadcast_interval", r.BroadcastInterval)
	add(err)
	_, err = ParseDurationField("reminder.tick_timeout", r.TickTimeout)
	add(err)
	switch strings.ToLower(strings.TrimSpace(r.DefaultMode)) {
	case "", "check", "broadcast":
	default:
		add(fmt.Errorf("reminder.default_mode must be check or broadcast, got %q", r.DefaultMode))
	}
	switch r.Urgency.Rule {
	case "", UrgencyRemainingBelowGoal:
	case UrgencyFixedCutoff:
		if d, err := ParseDurationField("reminder.urgency.cutoff", r.Urgency.Cutoff); err != nil {
			add(err)
		} else if d <= 0 {
			add(errors.New("reminder.urgency.cutoff is required for fixed_cutoff"))
		}
	default:
		add(fmt.Errorf("reminder.urgency.rule: unknown rule %q", r.Urgency.Rule))
	}

	_, err = ParseDurationField("notifier.send_timeout", c.Notifier.SendTimeout)
	add(err)

	switch c.Storage.Driver {
	case "", "none":
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	add(err)

	return errors.Join(errs...)
}
