package tracker

import "time"

// Issue is one tracker record with the fields the reminders need.
type Issue struct {
	Key     string
	Summary string
	Status  string
	// Assignee is the display name, empty when unassigned.
	Assignee string
	// SLA is nil when the issue carries no SLA field at all.
	SLA *SLA
}

// SLA is a service-level agreement attached to an issue.
type SLA struct {
	ID        string
	Name      string
	Ongoing   *SLACycle
	Completed []SLACycle
}

// SLACycle is one measured window of an SLA.
type SLACycle struct {
	Breached  bool
	Paused    bool
	Goal      Duration
	Elapsed   Duration
	Remaining Duration
	StartedAt time.Time
	BreachAt  time.Time // zero when unknown
}

// Duration is a tracker duration: exact millis plus the tracker's own
// human wording ("-2h 15m", "45m").
type Duration struct {
	Millis   int64
	Friendly string
}

func (d Duration) Std() time.Duration { return time.Duration(d.Millis) * time.Millisecond }

// Current returns the ongoing cycle, or nil.
func (s *SLA) Current() *SLACycle {
	if s == nil {
		return nil
	}
	return s.Ongoing
}
