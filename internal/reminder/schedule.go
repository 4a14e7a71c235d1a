package reminder

import "time"

// everySchedule is a cron.Schedule with a fixed delay. Unlike cron.Every it
// keeps sub-second precision.
type everySchedule struct {
	every time.Duration
}

func (s everySchedule) Next(t time.Time) time.Time { return t.Add(s.every) }
