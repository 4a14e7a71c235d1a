package report

import (
	"fmt"
	"time"

	"slabot/internal/tracker"
)

// Predicate decides whether an issue needs attention in broadcast mode.
type Predicate interface {
	Urgent(iss tracker.Issue) bool
	Name() string
}

// RemainingBelowGoal flags issues whose ongoing SLA cycle has less time left
// than its goal. Breached cycles (negative remaining) are always flagged.
type RemainingBelowGoal struct{}

func (RemainingBelowGoal) Name() string { return "remaining_below_goal" }

func (RemainingBelowGoal) Urgent(iss tracker.Issue) bool {
	c := iss.SLA.Current()
	if c == nil {
		return false
	}
	return c.Remaining.Millis < c.Goal.Millis
}

// FixedCutoff flags issues whose ongoing cycle has less than Cutoff left.
type FixedCutoff struct {
	Cutoff time.Duration
}

func (f FixedCutoff) Name() string { return "fixed_cutoff(" + f.Cutoff.String() + ")" }

func (f FixedCutoff) Urgent(iss tracker.Issue) bool {
	c := iss.SLA.Current()
	if c == nil {
		return false
	}
	return c.Remaining.Std() < f.Cutoff
}

// NewPredicate maps a configured rule name to a Predicate.
func NewPredicate(rule string, cutoff time.Duration) (Predicate, error) {
	switch rule {
	case "", "remaining_below_goal":
		return RemainingBelowGoal{}, nil
	case "fixed_cutoff":
		if cutoff <= 0 {
			return nil, fmt.Errorf("fixed_cutoff needs a positive cutoff")
		}
		return FixedCutoff{Cutoff: cutoff}, nil
	default:
		return nil, fmt.Errorf("unknown urgency rule %q", rule)
	}
}

// Filter keeps urgent issues in their original order.
func Filter(issues []tracker.Issue, p Predicate) []tracker.Issue {
	out := make([]tracker.Issue, 0, len(issues))
	for _, iss := range issues {
		if p.Urgent(iss) {
			out = append(out, iss)
		}
	}
	return out
}
