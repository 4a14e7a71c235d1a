package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabot/internal/tracker"
)

func withCycle(key string, remaining, goal time.Duration) tracker.Issue {
	return tracker.Issue{
		Key:     key,
		Summary: "issue " + key,
		Status:  "Open",
		SLA: &tracker.SLA{
			Name: "Time to resolution",
			Ongoing: &tracker.SLACycle{
				Remaining: tracker.Duration{Millis: remaining.Milliseconds(), Friendly: remaining.String()},
				Goal:      tracker.Duration{Millis: goal.Milliseconds(), Friendly: goal.String()},
			},
		},
	}
}

func TestRemainingBelowGoal(t *testing.T) {
	t.Parallel()
	p := RemainingBelowGoal{}
	cases := []struct {
		name string
		iss  tracker.Issue
		want bool
	}{
		{"half the goal left", withCycle("A-1", 30*time.Minute, time.Hour), true},
		{"more than goal left", withCycle("A-2", 90*time.Minute, time.Hour), false},
		{"exactly goal left", withCycle("A-3", time.Hour, time.Hour), false},
		{"breached", withCycle("A-4", -5*time.Minute, time.Hour), true},
		{"no sla field", tracker.Issue{Key: "A-5"}, false},
		{"sla without ongoing cycle", tracker.Issue{Key: "A-6", SLA: &tracker.SLA{Name: "TTR"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Urgent(tc.iss))
		})
	}
}

func TestFixedCutoff(t *testing.T) {
	t.Parallel()
	p := FixedCutoff{Cutoff: time.Hour}
	assert.True(t, p.Urgent(withCycle("A-1", 30*time.Minute, 8*time.Hour)))
	assert.False(t, p.Urgent(withCycle("A-2", 2*time.Hour, 8*time.Hour)))
	assert.False(t, p.Urgent(tracker.Issue{Key: "A-3"}))
}

func TestNewPredicate(t *testing.T) {
	t.Parallel()
	p, err := NewPredicate("", 0)
	require.NoError(t, err)
	assert.IsType(t, RemainingBelowGoal{}, p)

	p, err = NewPredicate("fixed_cutoff", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, FixedCutoff{Cutoff: time.Hour}, p)

	_, err = NewPredicate("fixed_cutoff", 0)
	assert.Error(t, err)
	_, err = NewPredicate("loudest", 0)
	assert.Error(t, err)
}

func TestFilterKeepsOrder(t *testing.T) {
	t.Parallel()
	in := []tracker.Issue{
		withCycle("C-3", time.Minute, time.Hour),
		withCycle("C-1", 2*time.Hour, time.Hour),
		withCycle("C-2", time.Minute, time.Hour),
	}
	out := Filter(in, RemainingBelowGoal{})
	require.Len(t, out, 2)
	assert.Equal(t, "C-3", out[0].Key)
	assert.Equal(t, "C-2", out[1].Key)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()
	r := NewRenderer(func(key string) string { return "https://jira.example.com/browse/" + key })

	breached := withCycle("OPS-2", -6*time.Minute, time.Hour)
	breached.SLA.Ongoing.Breached = true
	breached.SLA.Ongoing.Remaining.Friendly = "-6m"
	breached.Assignee = "Dana"

	issues := []tracker.Issue{
		{Key: "OPS-1", Summary: "fix *prod*_db", Status: "Open"},
		breached,
	}
	got := r.RenderSummary(issues)
	want := "[OPS-1](https://jira.example.com/browse/OPS-1)\n" +
		"Summary: fix \\*prod\\*\\_db\n" +
		"Assignee: Unassigned\n" +
		"Status: Open\n" +
		"SLA: no SLA set for this issue\n" +
		"\n" +
		"[OPS-2](https://jira.example.com/browse/OPS-2)\n" +
		"Summary: issue OPS-2\n" +
		"Assignee: Dana\n" +
		"Status: Open\n" +
		"Time remaining: -6m (breached)\n"
	assert.Equal(t, want, got)
	assert.Equal(t, got, r.RenderSummary(issues), "rendering must be deterministic")
}

func TestRenderNamedSLAWithoutCycle(t *testing.T) {
	t.Parallel()
	r := NewRenderer(nil)
	got := r.RenderSummary([]tracker.Issue{{Key: "X-1", SLA: &tracker.SLA{Name: "Time to first response"}}})
	assert.Contains(t, got, "[X-1](X-1)\n")
	assert.Contains(t, got, "Time to first response: no SLA set for this issue\n")
}

func TestRenderBroadcastHasTitle(t *testing.T) {
	t.Parallel()
	r := NewRenderer(nil)
	got := r.RenderBroadcast([]tracker.Issue{withCycle("B-1", time.Minute, time.Hour)})
	assert.True(t, len(got) > len(BroadcastTitle))
	assert.Equal(t, BroadcastTitle+"\n\n", got[:len(BroadcastTitle)+2])
	assert.Empty(t, r.RenderSummary(nil))
}
