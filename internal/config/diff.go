package config

import (
	"reflect"

	logx "slabot/pkg/logx"
)

// Change describes what a reload touched. Secrets are never included in Attrs.
type Change struct {
	Sections []string
	// NeedsRestart lists sections whose new values only take effect after a restart.
	NeedsRestart []string
	Attrs        []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// Summarize compares two configs section by section.
func Summarize(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, restart bool, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		if restart {
			ch.NeedsRestart = append(ch.NeedsRestart, section)
		}
		ch.Attrs = append(ch.Attrs, attrs...)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout {
		mark("telegram.bot", true, logx.String("telegram.poll_timeout", nt.PollTimeout))
	}
	if !reflect.DeepEqual(ot.AdminChatIDs, nt.AdminChatIDs) || !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		mark("telegram.access", false,
			logx.Int("telegram.admin_chats", len(nt.AdminChatIDs)),
			logx.Int("telegram.owners", len(nt.OwnerUserIDs)),
		)
	}

	oj, nj := oldCfg.Jira, newCfg.Jira
	if oj.URL != nj.URL || oj.Username != nj.Username || oj.Password != nj.Password ||
		oj.Token != nj.Token || oj.Timeout != nj.Timeout || oj.SLAField != nj.SLAField || oj.MaxResults != nj.MaxResults {
		mark("jira.client", true, logx.String("jira.url", nj.URL), logx.String("jira.sla_field", nj.SLAField))
	}
	if oj.Query != nj.Query || oj.BrowseURL != nj.BrowseURL {
		mark("jira.query", false)
	}

	or, nr := oldCfg.Reminder, newCfg.Reminder
	if or.Urgency != nr.Urgency || or.DefaultMode != nr.DefaultMode || or.DefaultInterval != nr.DefaultInterval {
		mark("reminder", false,
			logx.String("reminder.urgency", nr.Urgency.Rule),
			logx.String("reminder.default_mode", nr.DefaultMode),
			logx.String("reminder.default_interval", nr.DefaultInterval),
		)
	}
	if or.Timezone != nr.Timezone || or.BroadcastInterval != nr.BroadcastInterval ||
		or.MinInterval != nr.MinInterval || or.TickTimeout != nr.TickTimeout {
		mark("reminder.schedule", true, logx.String("reminder.broadcast_interval", nr.BroadcastInterval))
	}

	if oldCfg.Notifier != newCfg.Notifier {
		mark("notifier", false, logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec))
	}
	if oldCfg.Logging != newCfg.Logging {
		mark("logging", false,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", true, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	return ch
}
