package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"slabot/internal/notify"
	logx "slabot/pkg/logx"
)

// Broadcaster periodically sends urgent issues to every subscribed chat.
type Broadcaster struct {
	every time.Duration
	loc   *time.Location
	cycle *Cycle
	subs  *Subscribers
	log   logx.Logger

	mu sync.Mutex
	c  *cron.Cron

	runs     atomic.Uint64
	failures atomic.Uint64
	lastRun  atomic.Int64
}

func NewBroadcaster(every time.Duration, loc *time.Location, cycle *Cycle, subs *Subscribers, log logx.Logger) *Broadcaster {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Broadcaster{every: every, loc: loc, cycle: cycle, subs: subs, log: log}
}

// Start schedules the periodic run. A zero interval disables it.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c != nil {
		return
	}
	if b.every <= 0 {
		b.log.Info("broadcast disabled")
		return
	}
	cl := cronLogger{b.log}
	b.c = cron.New(
		cron.WithLocation(b.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	b.c.Schedule(everySchedule{every: b.every}, cron.FuncJob(func() { _, _, _ = b.run(ctx) }))
	b.c.Start()
	b.log.Info("broadcast scheduled", logx.Duration("every", b.every))
}

func (b *Broadcaster) Stop(ctx context.Context) {
	b.mu.Lock()
	c := b.c
	b.c = nil
	b.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		b.log.Warn("broadcast stop timed out", logx.Err(ctx.Err()))
	}
}

// TriggerNow runs one broadcast immediately.
func (b *Broadcaster) TriggerNow(ctx context.Context) (notify.Report, bool, error) {
	return b.run(ctx)
}

// Stats returns run and failure counts and the last run time.
func (b *Broadcaster) Stats() (runs, failures uint64, last time.Time) {
	if ns := b.lastRun.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return b.runs.Load(), b.failures.Load(), last
}

func (b *Broadcaster) run(ctx context.Context) (notify.Report, bool, error) {
	b.runs.Add(1)
	b.lastRun.Store(time.Now().UnixNano())
	chats := b.subs.List()
	if len(chats) == 0 {
		b.log.Debug("broadcast skipped; no subscribers")
		return notify.Report{}, false, nil
	}
	rep, sent, err := b.cycle.BroadcastTo(ctx, chats)
	if err != nil {
		b.failures.Add(1)
		b.log.Warn("broadcast fetch failed", logx.Err(err))
		return rep, false, err
	}
	if !sent {
		b.log.Debug("broadcast skipped; nothing urgent", logx.Int("subscribers", len(chats)))
	}
	return rep, sent, nil
}
