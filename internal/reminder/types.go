package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInterval = errors.New("reminder: interval must be positive")
	ErrStopped         = errors.New("reminder: registry stopped")
)

// Mode selects what a tick reports.
type Mode int

const (
	// ModeCheck reports the full matching set on every tick.
	ModeCheck Mode = iota
	// ModeBroadcast reports only urgent issues and stays silent otherwise.
	ModeBroadcast
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModeBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "check":
		return ModeCheck, nil
	case "broadcast":
		return ModeBroadcast, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want check or broadcast)", s)
	}
}

// State is a timer's lifecycle position.
type State int32

const (
	StateScheduled State = iota
	StateFiring
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFiring:
		return "firing"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TimerID identifies a timer. A chat holds at most one timer at a time.
type TimerID struct {
	ChatID   int64
	Interval time.Duration
}

// Name is the deterministic label used in logs and listings.
func (id TimerID) Name() string {
	return fmt.Sprintf("reminder:%d:%s", id.ChatID, id.Interval)
}

// Timer is a point-in-time view of a registered timer.
type Timer struct {
	ID        TimerID
	Mode      Mode
	State     State
	CreatedAt time.Time
	Next      time.Time // zero until the registry is started
	LastTick  time.Time
	Ticks     uint64
	Failures  uint64
	Skipped   uint64
	LastError string
}

func (t Timer) Name() string { return t.ID.Name() }
