package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Jira     JiraConfig     `json:"jira"`
	Reminder ReminderConfig `json:"reminder"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminChatIDs may run admin commands; the first one also receives mirrored logs.
	AdminChatIDs []int64 `json:"admin_chat_ids"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	PollTimeout  string  `json:"poll_timeout"`
}

type JiraConfig struct {
	URL string `json:"url"`
	// BrowseURL overrides the base used for issue links (defaults to URL).
	BrowseURL  string `json:"browse_url,omitempty"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Token      string `json:"token,omitempty"`
	Query      string `json:"query"`
	SLAField   string `json:"sla_field"`
	MaxResults int    `json:"max_results"`
	Timeout    string `json:"timeout"`
}

type ReminderConfig struct {
	Timezone          string        `json:"timezone"`
	DefaultInterval   string        `json:"default_interval"`
	MinInterval       string        `json:"min_interval"`
	BroadcastInterval string        `json:"broadcast_interval"`
	DefaultMode       string        `json:"default_mode"`
	TickTimeout       string        `json:"tick_timeout"`
	Urgency           UrgencyConfig `json:"urgency"`
}

// UrgencyConfig selects the broadcast filter. Rule is "remaining_below_goal"
// (default) or "fixed_cutoff", which uses Cutoff.
type UrgencyConfig struct {
	Rule   string `json:"rule"`
	Cutoff string `json:"cutoff,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout"`
}

type LoggingConfig struct {
	Level    string            `json:"level"`
	Console  bool              `json:"console"`
	File     LogFileConfig     `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig configures the command audit trail. Driver is "none", "file" or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

const (
	DefaultSLAField          = "customfield_12671"
	DefaultInterval          = "30m"
	DefaultMinInterval       = "10s"
	DefaultBroadcastInterval = "60s"
	DefaultTickTimeout       = "45s"
	DefaultJiraTimeout       = "20s"
	DefaultMaxResults        = 100

	UrgencyRemainingBelowGoal = "remaining_below_goal"
	UrgencyFixedCutoff        = "fixed_cutoff"
)

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Jira.SLAField == "" {
		c.Jira.SLAField = DefaultSLAField
	}
	if c.Jira.MaxResults <= 0 {
		c.Jira.MaxResults = DefaultMaxResults
	}
	if c.Jira.Timeout == "" {
		c.Jira.Timeout = DefaultJiraTimeout
	}
	r := &c.Reminder
	if r.DefaultInterval == "" {
		r.DefaultInterval = DefaultInterval
	}
	if r.MinInterval == "" {
		r.MinInterval = DefaultMinInterval
	}
	if r.BroadcastInterval == "" {
		r.BroadcastInterval = DefaultBroadcastInterval
	}
	if r.DefaultMode == "" {
		r.DefaultMode = "check"
	}
	if r.TickTimeout == "" {
		r.TickTimeout = DefaultTickTimeout
	}
	if r.Urgency.Rule == "" {
		r.Urgency.Rule = UrgencyRemainingBelowGoal
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "none"
	}
}

// LogChatID is where mirrored log records go (0 when unset).
func (c *Config) LogChatID() int64 {
	if len(c.Telegram.AdminChatIDs) == 0 {
		return 0
	}
	return c.Telegram.AdminChatIDs[0]
}
