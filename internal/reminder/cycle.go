package reminder

import (
	"context"
	"sync"

	"slabot/internal/notify"
	"slabot/internal/report"
	"slabot/internal/tracker"
	logx "slabot/pkg/logx"
)

// Source fetches issues for a query.
type Source interface {
	FetchMatchingIssues(ctx context.Context, query string) ([]tracker.Issue, error)
}

// Sink delivers rendered text.
type Sink interface {
	Deliver(ctx context.Context, chatID int64, text string) error
	Broadcast(ctx context.Context, chatIDs []int64, text string) notify.Report
}

// Cycle is the body of a reminder tick: fetch, filter by mode, render, deliver.
type Cycle struct {
	src    Source
	render *report.Renderer
	sink   Sink
	log    logx.Logger

	mu     sync.RWMutex
	query  string
	urgent report.Predicate
}

func NewCycle(src Source, render *report.Renderer, sink Sink, query string, urgent report.Predicate, log logx.Logger) *Cycle {
	if log.IsZero() {
		log = logx.Nop()
	}
	if urgent == nil {
		urgent = report.RemainingBelowGoal{}
	}
	return &Cycle{src: src, render: render, sink: sink, log: log, query: query, urgent: urgent}
}

// SetQuery swaps the default query for subsequent ticks.
func (c *Cycle) SetQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

// SetPredicate swaps the urgency rule for subsequent ticks.
func (c *Cycle) SetPredicate(p report.Predicate) {
	if p == nil {
		return
	}
	c.mu.Lock()
	c.urgent = p
	c.mu.Unlock()
}

func (c *Cycle) settings() (string, report.Predicate) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query, c.urgent
}

// Compose fetches and renders without sending. send is false when the
// mode has nothing to say (broadcast with no urgent issue). An empty query
// means the configured default.
func (c *Cycle) Compose(ctx context.Context, query string, mode Mode) (text string, send bool, err error) {
	defQuery, urgent := c.settings()
	if query == "" {
		query = defQuery
	}
	issues, err := c.src.FetchMatchingIssues(ctx, query)
	if err != nil {
		return "", false, err
	}
	switch mode {
	case ModeBroadcast:
		hot := report.Filter(issues, urgent)
		c.log.Debug("issues filtered", logx.Int("fetched", len(issues)), logx.Int("urgent", len(hot)), logx.String("rule", urgent.Name()))
		if len(hot) == 0 {
			return "", false, nil
		}
		return c.render.RenderBroadcast(hot), true, nil
	default:
		if len(issues) == 0 {
			return report.NothingMatched, true, nil
		}
		return c.render.RenderSummary(issues), true, nil
	}
}

// Tick implements Ticker. A fetch failure skips the tick and is returned.
func (c *Cycle) Tick(ctx context.Context, chatID int64, mode Mode) error {
	text, send, err := c.Compose(ctx, "", mode)
	if err != nil {
		return err
	}
	if !send {
		return nil
	}
	return c.sink.Deliver(ctx, chatID, text)
}

// CheckNow renders the full matching set for query (default query when
// empty) without touching any timer.
func (c *Cycle) CheckNow(ctx context.Context, query string) (string, error) {
	text, _, err := c.Compose(ctx, query, ModeCheck)
	return text, err
}

// BroadcastTo runs one broadcast-mode cycle and sends the result to every
// chat. sent is false when nothing was urgent.
func (c *Cycle) BroadcastTo(ctx context.Context, chatIDs []int64) (rep notify.Report, sent bool, err error) {
	text, send, err := c.Compose(ctx, "", ModeBroadcast)
	if err != nil || !send {
		return notify.Report{}, false, err
	}
	return c.sink.Broadcast(ctx, chatIDs, text), true, nil
}
