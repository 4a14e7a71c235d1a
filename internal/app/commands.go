package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"slabot/internal/reminder"
	"slabot/internal/report"
	rtsup "slabot/internal/runtime/supervisor"
	"slabot/internal/storage"
	"slabot/internal/tracker"
	"slabot/internal/transport/telegram/router"
)

const (
	startReply      = "Hi! I'm the SLA reminder bot.\nYou will now receive notifications about tracks that need attention."
	stopReply       = "You will no longer receive notifications about tracks."
	notSubscribed   = "You are not subscribed to notifications."
	noTimersReply   = "No active reminders. Use /subscribe [seconds] [check|broadcast]."
	noSubscribers   = "No subscribers."
	auditOffReply   = "Audit storage is disabled."
	defaultAuditLen = 10
	maxAuditLen     = 50
)

// bot holds the command handlers and what they operate on.
type bot struct {
	registry *reminder.Registry
	subs     *reminder.Subscribers
	cycle    *reminder.Cycle
	bcast    *reminder.Broadcaster
	store    storage.Store

	settings atomic.Pointer[settings]
	started  time.Time
	// supervisors feeds /status; nil entries are skipped.
	supervisors func() map[string]*rtsup.Supervisor
	dropped     func() uint64 // events lost by slow bus subscribers
	now         func() time.Time
}

func (b *bot) current() settings { return *b.settings.Load() }

func (b *bot) commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "subscribe this chat to the broadcast", Handle: b.start},
		{Name: "stop", Description: "unsubscribe and cancel this chat's reminders", Handle: b.stop},
		{
			Name:        "subscribe",
			Aliases:     []string{"sub"},
			Description: "remind this chat periodically",
			Usage:       "/subscribe [seconds] [check|broadcast]",
			Handle:      b.subscribe,
		},
		{
			Name:        "unsubscribe",
			Aliases:     []string{"unsub"},
			Description: "cancel the reminder with this interval",
			Usage:       "/unsubscribe <seconds>",
			Handle:      b.unsubscribe,
		},
		{Name: "stopall", Description: "cancel every reminder of this chat", Handle: b.stopAll},
		{Name: "timers", Description: "list this chat's reminders", Handle: b.timers},
		{Name: "check", Description: "show issues matching the configured query", Handle: b.check},
		{Name: "get", Description: "show specific issues", Usage: "/get <KEY> [KEY...]", Handle: b.get},
		{Name: "send", Description: "broadcast urgent issues now", Access: router.AccessAdmin, Handle: b.send},
		{Name: "subscribers", Description: "list subscribed chats", Access: router.AccessAdmin, Handle: b.subscribers},
		{Name: "status", Description: "runtime status", Access: router.AccessAdmin, Handle: b.status},
		{Name: "audit", Description: "recent commands", Usage: "/audit [n]", Access: router.AccessAdmin, Handle: b.audit},
	}
}

func (b *bot) start(ctx context.Context, req *router.Request) error {
	if b.subs.Add(req.Chat.ChatID) {
		req.Logger.Info("chat subscribed")
	}
	return req.Reply(ctx, startReply)
}

func (b *bot) stop(ctx context.Context, req *router.Request) error {
	removed := b.subs.Remove(req.Chat.ChatID)
	cancelled := b.registry.CancelAll(req.Chat.ChatID)
	if !removed && cancelled == 0 {
		return req.Reply(ctx, notSubscribed)
	}
	req.Logger.Info("chat unsubscribed")
	return req.Reply(ctx, stopReply)
}

func (b *bot) subscribe(ctx context.Context, req *router.Request) error {
	st := b.current()
	interval, mode := st.defaultInterval, st.defaultMode
	for _, arg := range req.Args {
		if m, err := reminder.ParseMode(arg); err == nil {
			mode = m
			continue
		}
		d, err := parseSeconds(arg)
		if err != nil {
			return req.Reply(ctx, fmt.Sprintf("%v\nUsage: /subscribe [seconds] [check|broadcast]", err))
		}
		interval = d
	}

	t, prev, err := b.registry.Register(req.Chat.ChatID, interval, mode)
	switch {
	case errors.Is(err, reminder.ErrInvalidInterval):
		return req.Reply(ctx, fmt.Sprintf("Interval must be at least %d seconds.", int64(st.minInterval/time.Second)))
	case err != nil:
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reminder set: every %s (%s mode).", formatInterval(interval), mode)
	if prev != nil {
		fmt.Fprintf(&sb, "\nReplaced the previous reminder (every %s, %s mode).", formatInterval(prev.ID.Interval), prev.Mode)
	}
	if !t.Next.IsZero() {
		fmt.Fprintf(&sb, "\nNext report %s.", humanize.RelTime(t.Next, b.now(), "ago", "from now"))
	}
	return req.Reply(ctx, sb.String())
}

func (b *bot) unsubscribe(ctx context.Context, req *router.Request) error {
	if len(req.Args) != 1 {
		return req.Reply(ctx, "Usage: /unsubscribe <seconds>")
	}
	d, err := parseSeconds(req.Args[0])
	if err != nil {
		return req.Reply(ctx, err.Error())
	}
	if !b.registry.Cancel(req.Chat.ChatID, d) {
		return req.Reply(ctx, fmt.Sprintf("No reminder every %s in this chat.", formatInterval(d)))
	}
	return req.Reply(ctx, fmt.Sprintf("Reminder every %s cancelled.", formatInterval(d)))
}

func (b *bot) stopAll(ctx context.Context, req *router.Request) error {
	n := b.registry.CancelAll(req.Chat.ChatID)
	if n == 0 {
		return req.Reply(ctx, "No active reminders.")
	}
	return req.Reply(ctx, fmt.Sprintf("Cancelled %d reminder(s).", n))
}

func (b *bot) timers(ctx context.Context, req *router.Request) error {
	list := b.registry.ListChat(req.Chat.ChatID)
	if len(list) == 0 {
		return req.Reply(ctx, noTimersReply)
	}
	now := b.now()
	lines := []string{"Active reminders:"}
	for _, t := range list {
		line := fmt.Sprintf("• %s: every %s (%s), %s", t.Name(), formatInterval(t.ID.Interval), t.Mode, t.State)
		if !t.Next.IsZero() {
			line += ", next " + humanize.RelTime(t.Next, now, "ago", "from now")
		}
		if t.Ticks > 0 {
			line += fmt.Sprintf(", %s ticks", humanize.Comma(int64(t.Ticks)))
		}
		if t.Failures > 0 {
			line += fmt.Sprintf(", %d failed", t.Failures)
		}
		lines = append(lines, line)
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (b *bot) check(ctx context.Context, req *router.Request) error {
	text, err := b.cycle.CheckNow(ctx, "")
	if err != nil {
		return err
	}
	return req.ReplyMarkdown(ctx, text)
}

func (b *bot) get(ctx context.Context, req *router.Request) error {
	q, err := tracker.KeysQuery(req.Args...)
	if errors.Is(err, tracker.ErrEmptyQuery) {
		return req.Reply(ctx, "Usage: /get <KEY> [KEY...]")
	}
	if err != nil {
		return req.Reply(ctx, err.Error())
	}
	text, err := b.cycle.CheckNow(ctx, q)
	if err != nil {
		return err
	}
	return req.ReplyMarkdown(ctx, text)
}

func (b *bot) send(ctx context.Context, req *router.Request) error {
	if b.subs.Len() == 0 {
		return req.Reply(ctx, noSubscribers)
	}
	rep, sent, err := b.bcast.TriggerNow(ctx)
	if err != nil {
		return err
	}
	if !sent {
		return req.Reply(ctx, report.NothingUrgent)
	}
	msg := fmt.Sprintf("Broadcast sent to %d of %d chats.", rep.Sent, rep.Total)
	if len(rep.Failed) > 0 {
		msg += "\nFailed: " + joinIDs(rep.Failed)
	}
	return req.Reply(ctx, msg)
}

func (b *bot) subscribers(ctx context.Context, req *router.Request) error {
	ids := b.subs.List()
	if len(ids) == 0 {
		return req.Reply(ctx, noSubscribers)
	}
	return req.Reply(ctx, fmt.Sprintf("Subscribers (%d): %s", len(ids), joinIDs(ids)))
}

func (b *bot) status(ctx context.Context, req *router.Request) error {
	now := b.now()
	st := b.current()
	lines := []string{
		"started " + humanize.RelTime(b.started, now, "ago", "from now"),
		fmt.Sprintf("subscribers: %d", b.subs.Len()),
		fmt.Sprintf("timers: %d", b.registry.Len()),
		fmt.Sprintf("defaults: every %s, %s mode", formatInterval(st.defaultInterval), st.defaultMode),
	}
	if runs, failures, last := b.bcast.Stats(); runs > 0 {
		lines = append(lines, fmt.Sprintf("broadcast: %d runs, %d failed, last %s", runs, failures, humanize.RelTime(last, now, "ago", "from now")))
	}
	if b.supervisors != nil {
		sups := b.supervisors()
		for _, name := range slices.Sorted(maps.Keys(sups)) {
			sup := sups[name]
			if sup == nil {
				continue
			}
			c := sup.Counters()
			line := fmt.Sprintf("%s: %d active, %d started", name, c.Active, c.Started)
			if err := sup.Err(); err != nil {
				line += ", err: " + err.Error()
			}
			lines = append(lines, line)
			for _, gs := range sup.Stats() {
				if gs.Restarts == 0 && gs.Panics == 0 {
					continue
				}
				lines = append(lines, fmt.Sprintf("  %s: %d restarts, %d panics, last error %q", gs.Name, gs.Restarts, gs.Panics, gs.LastErr))
			}
		}
	}
	if b.dropped != nil {
		if n := b.dropped(); n > 0 {
			lines = append(lines, fmt.Sprintf("events dropped: %s", humanize.Comma(int64(n))))
		}
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (b *bot) audit(ctx context.Context, req *router.Request) error {
	n := defaultAuditLen
	if len(req.Args) > 0 {
		v, err := strconv.Atoi(req.Args[0])
		if err != nil || v <= 0 {
			return req.Reply(ctx, "Usage: /audit [n]")
		}
		n = min(v, maxAuditLen)
	}
	entries, err := b.store.RecentAudit(ctx, n)
	if errors.Is(err, storage.ErrDisabled) {
		return req.Reply(ctx, auditOffReply)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return req.Reply(ctx, "No audit entries yet.")
	}
	now := b.now()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		status := "ok"
		if !e.OK {
			status = "failed"
		}
		who := strconv.FormatInt(e.ActorID, 10)
		if e.ActorUsername != "" {
			who = "@" + e.ActorUsername
		}
		cmd := "/" + e.Command
		if e.Args != "" {
			cmd += " " + e.Args
		}
		lines = append(lines, fmt.Sprintf("%s %s by %s in %d: %s",
			humanize.RelTime(e.At, now, "ago", "from now"), cmd, who, e.ChatID, status))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

// maxSeconds is the largest interval a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// parseSeconds accepts a positive whole number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 || n > maxSeconds {
		return 0, fmt.Errorf("interval must be a positive whole number of seconds, got %q", s)
	}
	return time.Duration(n) * time.Second, nil
}

func formatInterval(d time.Duration) string {
	return d.String()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
