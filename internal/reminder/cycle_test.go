package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabot/internal/report"
	"slabot/internal/tracker"
	logx "slabot/pkg/logx"
)

func newTestCycle(src Source, sink Sink) *Cycle {
	browse := func(key string) string { return "https://jira.example.com/browse/" + key }
	return NewCycle(src, report.NewRenderer(browse), sink, "project = OPS", nil, logx.Nop())
}

func TestCheckModeReportsEverything(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{urgentIssue("OPS-1"), relaxedIssue("OPS-2")}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	require.NoError(t, c.Tick(context.Background(), 1, ModeCheck))
	msgs := sink.Messages(1)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "[OPS-1](https://jira.example.com/browse/OPS-1)")
	assert.Contains(t, msgs[0], "[OPS-2](https://jira.example.com/browse/OPS-2)")
	assert.Equal(t, []string{"project = OPS"}, src.seen)
}

func TestCheckModeWithNoIssues(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	c := newTestCycle(&scriptedSource{}, sink)

	require.NoError(t, c.Tick(context.Background(), 1, ModeCheck))
	assert.Equal(t, []string{report.NothingMatched}, sink.Messages(1))
}

func TestBroadcastModeSendsOnlyUrgent(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{relaxedIssue("OPS-2"), urgentIssue("OPS-1")}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	require.NoError(t, c.Tick(context.Background(), 1, ModeBroadcast))
	msgs := sink.Messages(1)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], report.BroadcastTitle)
	assert.Contains(t, msgs[0], "OPS-1")
	assert.NotContains(t, msgs[0], "OPS-2")
}

func TestBroadcastModeSilentWhenNothingUrgent(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{relaxedIssue("OPS-2"), {Key: "OPS-3"}}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	require.NoError(t, c.Tick(context.Background(), 1, ModeBroadcast))
	assert.Zero(t, sink.Count(1))
}

func TestTickReturnsFetchError(t *testing.T) {
	t.Parallel()
	fetchErr := &tracker.FetchError{Op: "search", Status: 502}
	src := &scriptedSource{errs: map[int]error{1: fetchErr}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	err := c.Tick(context.Background(), 1, ModeCheck)
	var fe *tracker.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, sink.Count(1))

	require.NoError(t, c.Tick(context.Background(), 1, ModeCheck))
	assert.Equal(t, 1, sink.Count(1))
}

func TestCheckNowIsIdempotent(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{urgentIssue("OPS-1"), relaxedIssue("OPS-2")}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	first, err := c.CheckNow(context.Background(), "")
	require.NoError(t, err)
	second, err := c.CheckNow(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Zero(t, sink.Count(0), "check now must not deliver")

	_, err = c.CheckNow(context.Background(), `key in ("OPS-9")`)
	require.NoError(t, err)
	assert.Equal(t, `key in ("OPS-9")`, src.seen[2])
}

func TestBroadcastToIsolatesFailures(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{urgentIssue("OPS-1")}}
	sink := &recordingSink{failOn: map[int64]error{1: errors.New("chat not found")}}
	c := newTestCycle(src, sink)

	rep, sent, err := c.BroadcastTo(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, []int64{1}, rep.Failed)
	assert.Equal(t, 1, sink.Count(2))
}

func TestSetQueryAndPredicate(t *testing.T) {
	t.Parallel()
	src := &scriptedSource{issues: []tracker.Issue{relaxedIssue("OPS-2")}}
	sink := &recordingSink{}
	c := newTestCycle(src, sink)

	c.SetQuery("project = NEW")
	c.SetPredicate(report.FixedCutoff{Cutoff: 2 * time.Hour})
	c.SetPredicate(nil)

	text, send, err := c.Compose(context.Background(), "", ModeBroadcast)
	require.NoError(t, err)
	assert.True(t, send, "90m left is under a 2h cutoff")
	assert.Contains(t, text, "OPS-2")
	assert.Equal(t, []string{"project = NEW"}, src.seen)
}
