package reminder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"slabot/internal/eventbus"
	logx "slabot/pkg/logx"
)

// Ticker runs one reminder cycle for a chat.
type Ticker interface {
	Tick(ctx context.Context, chatID int64, mode Mode) error
}

type Config struct {
	Location    *time.Location
	MinInterval time.Duration
	TickTimeout time.Duration
}

// Registry owns every per-chat reminder timer. Mutations are serialized by
// one mutex; a chat holds at most one timer and registering again replaces it.
//
// Each timer is a cron entry. A firing moves the timer Scheduled -> Firing
// and back; a firing that finds the timer still Firing is skipped, so at
// most one tick per timer is in flight. Cancel moves the timer to Cancelled
// and removes the entry; a tick already running finishes but never returns
// the timer to Scheduled. Only Stop cancels running ticks.
type Registry struct {
	cfg  Config
	tick Ticker
	log  logx.Logger
	bus  eventbus.Bus

	mu        sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
	stopped   bool
	timers    map[int64]*timer
}

type timer struct {
	id      TimerID
	mode    Mode
	created time.Time

	entry cron.EntryID // 0 until armed, guarded by Registry.mu

	state    atomic.Int32
	ticks    atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64
	lastTick atomic.Int64 // unix nanos
	lastErr  atomic.Value // string
}

func NewRegistry(cfg Config, tick Ticker, log logx.Logger, bus eventbus.Bus) *Registry {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Registry{
		cfg:    cfg,
		tick:   tick,
		log:    log,
		bus:    bus,
		timers: map[int64]*timer{},
	}
}

// Start begins firing. Timers registered earlier are armed now.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.c != nil {
		return nil
	}
	r.runCtx, r.runCancel = context.WithCancel(ctx)
	r.c = cron.New(cron.WithLocation(r.cfg.Location), cron.WithLogger(cronLogger{r.log}))
	for _, t := range r.timers {
		r.armLocked(t)
	}
	r.c.Start()
	r.log.Info("registry started", logx.Int("timers", len(r.timers)), logx.String("tz", r.cfg.Location.String()))
	return nil
}

// Stop destroys every timer and waits for in-flight ticks until ctx is done.
func (r *Registry) Stop(ctx context.Context) error {
	started := time.Now()
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.stopped = true
	n := len(r.timers)
	for chatID, t := range r.timers {
		t.state.Store(int32(StateCancelled))
		delete(r.timers, chatID)
	}
	if r.runCancel != nil {
		r.runCancel()
	}
	r.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			r.log.Warn("registry stop timed out waiting for ticks", logx.Err(ctx.Err()))
			return ctx.Err()
		}
	}
	r.log.Info("registry stopped", logx.Int("timers", n), logx.Duration("took", time.Since(started)))
	return nil
}

// Register installs a timer for chatID, replacing the chat's previous
// timer if any; prev is that timer as it was just before the replacement.
// The first tick fires one interval from now.
func (r *Registry) Register(chatID int64, interval time.Duration, mode Mode) (t Timer, prev *Timer, err error) {
	if interval <= 0 {
		return Timer{}, nil, ErrInvalidInterval
	}
	if r.cfg.MinInterval > 0 && interval < r.cfg.MinInterval {
		return Timer{}, nil, fmt.Errorf("%w: %s is below the minimum of %s", ErrInvalidInterval, interval, r.cfg.MinInterval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return Timer{}, nil, ErrStopped
	}

	old, replaced := r.timers[chatID]
	if replaced {
		snap := r.snapshotLocked(old)
		prev = &snap
		r.cancelLocked(old, "replaced")
	}
	nt := &timer{
		id:      TimerID{ChatID: chatID, Interval: interval},
		mode:    mode,
		created: time.Now(),
	}
	r.timers[chatID] = nt
	if r.c != nil {
		r.armLocked(nt)
	}

	snap := r.snapshotLocked(nt)
	r.log.Info("timer registered",
		logx.String("timer", nt.id.Name()),
		logx.String("mode", mode.String()),
		logx.Bool("replaced", replaced),
	)
	r.bus.Publish(eventbus.Event{Type: eventbus.TimerRegistered, Data: snap})
	return snap, prev, nil
}

// Cancel removes the chat's timer if it has the given interval.
func (r *Registry) Cancel(chatID int64, interval time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[chatID]
	if !ok || t.id.Interval != interval {
		return false
	}
	r.cancelLocked(t, "unsubscribe")
	return true
}

// CancelAll removes every timer of a chat and returns how many were removed.
func (r *Registry) CancelAll(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[chatID]
	if !ok {
		return 0
	}
	r.cancelLocked(t, "stop_all")
	return 1
}

// Get returns the chat's timer.
func (r *Registry) Get(chatID int64) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[chatID]
	if !ok {
		return Timer{}, false
	}
	return r.snapshotLocked(t), true
}

// List returns all live timers ordered by chat.
func (r *Registry) List() []Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Timer, 0, len(r.timers))
	for _, t := range r.timers {
		out = append(out, r.snapshotLocked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.ChatID < out[j].ID.ChatID })
	return out
}

// ListChat returns the chat's live timers (zero or one).
func (r *Registry) ListChat(chatID int64) []Timer {
	if t, ok := r.Get(chatID); ok {
		return []Timer{t}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Registry) armLocked(t *timer) {
	ctx := r.runCtx
	t.entry = r.c.Schedule(everySchedule{every: t.id.Interval}, cron.FuncJob(func() { r.fire(ctx, t) }))
}

func (r *Registry) cancelLocked(t *timer, reason string) {
	t.state.Store(int32(StateCancelled))
	if r.c != nil && t.entry != 0 {
		r.c.Remove(t.entry)
	}
	delete(r.timers, t.id.ChatID)
	r.log.Info("timer cancelled", logx.String("timer", t.id.Name()), logx.String("reason", reason))
	r.bus.Publish(eventbus.Event{Type: eventbus.TimerCancelled, Data: t.id})
}

func (r *Registry) snapshotLocked(t *timer) Timer {
	snap := Timer{
		ID:        t.id,
		Mode:      t.mode,
		State:     State(t.state.Load()),
		CreatedAt: t.created,
		Ticks:     t.ticks.Load(),
		Failures:  t.failures.Load(),
		Skipped:   t.skipped.Load(),
	}
	if ns := t.lastTick.Load(); ns != 0 {
		snap.LastTick = time.Unix(0, ns)
	}
	if s, ok := t.lastErr.Load().(string); ok {
		snap.LastError = s
	}
	if r.c != nil && t.entry != 0 {
		snap.Next = r.c.Entry(t.entry).Next
	}
	return snap
}

// fire runs on a cron goroutine.
func (r *Registry) fire(ctx context.Context, t *timer) {
	if !t.state.CompareAndSwap(int32(StateScheduled), int32(StateFiring)) {
		if State(t.state.Load()) == StateFiring {
			t.skipped.Add(1)
			r.log.Debug("tick skipped; previous tick still running", logx.String("timer", t.id.Name()))
			r.bus.Publish(eventbus.Event{Type: eventbus.TickSkipped, Data: t.id})
		}
		return
	}
	// A cancel during the tick leaves the state at Cancelled.
	defer t.state.CompareAndSwap(int32(StateFiring), int32(StateScheduled))

	if r.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TickTimeout)
		defer cancel()
	}

	tickID := uuid.NewString()
	log := r.log.With(logx.String("timer", t.id.Name()), logx.String("tick", tickID))
	started := time.Now()
	r.bus.Publish(eventbus.Event{Type: eventbus.TickStarted, Data: t.id})

	err := r.runTick(ctx, t)
	t.ticks.Add(1)
	t.lastTick.Store(started.UnixNano())
	if err != nil {
		t.failures.Add(1)
		t.lastErr.Store(err.Error())
		log.Warn("tick failed", logx.Err(err), logx.Duration("took", time.Since(started)))
		r.bus.Publish(eventbus.Event{Type: eventbus.TickFailed, Data: t.id})
		return
	}
	t.lastErr.Store("")
	log.Debug("tick finished", logx.Duration("took", time.Since(started)))
	r.bus.Publish(eventbus.Event{Type: eventbus.TickFinished, Data: t.id})
}

func (r *Registry) runTick(ctx context.Context, t *timer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tick panicked", logx.String("timer", t.id.Name()), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("tick panic: %v", p)
		}
	}()
	return r.tick.Tick(ctx, t.id.ChatID, t.mode)
}
