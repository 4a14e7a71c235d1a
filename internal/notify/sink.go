package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"slabot/internal/eventbus"
	kit "slabot/internal/transport"
	logx "slabot/pkg/logx"
)

// DeliveryError is a failed send to one chat.
type DeliveryError struct {
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to chat %d: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Config struct {
	RatePerSec  int
	SendTimeout time.Duration
}

// Report summarizes one broadcast.
type Report struct {
	Total  int
	Sent   int
	Failed []int64
}

// Sink delivers rendered text to chats. A failure for one chat is logged,
// published and returned, but never affects other chats. Sends are not retried.
type Sink struct {
	sender kit.Sender
	log    logx.Logger
	bus    eventbus.Bus

	mu      sync.Mutex
	limiter *rate.Limiter
	timeout time.Duration
}

func New(sender kit.Sender, cfg Config, log logx.Logger, bus eventbus.Bus) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Sink{sender: sender, log: log, bus: bus}
	s.Apply(cfg)
	return s
}

// Apply swaps rate and timeout at runtime.
func (s *Sink) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s.mu.Lock()
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	s.timeout = timeout
	s.mu.Unlock()
}

// Deliver sends text to one chat as Markdown.
func (s *Sink) Deliver(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	lim, timeout := s.limiter, s.timeout
	s.mu.Unlock()

	fail := func(err error) error {
		derr := &DeliveryError{ChatID: chatID, Err: err}
		s.log.Warn("delivery failed", logx.Int64("chat_id", chatID), logx.Err(err))
		s.bus.Publish(eventbus.Event{Type: eventbus.DeliveryFailed, Data: derr})
		return derr
	}

	if err := lim.Wait(ctx); err != nil {
		return fail(err)
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.sender.SendText(sctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{
		ParseMode:      kit.Markdown,
		DisablePreview: true,
	})
	if err != nil {
		return fail(err)
	}
	return nil
}

// Broadcast sends the same text to every chat, in order.
func (s *Sink) Broadcast(ctx context.Context, chatIDs []int64, text string) Report {
	rep := Report{Total: len(chatIDs)}
	started := time.Now()
	for _, id := range chatIDs {
		if err := s.Deliver(ctx, id, text); err != nil {
			rep.Failed = append(rep.Failed, id)
			continue
		}
		rep.Sent++
	}
	fields := []logx.Field{
		logx.Int("total", rep.Total),
		logx.Int("failed", len(rep.Failed)),
		logx.Duration("took", time.Since(started)),
	}
	if len(rep.Failed) > 0 {
		s.log.Warn("broadcast finished with failures", fields...)
	} else {
		s.log.Info("broadcast finished", fields...)
	}
	return rep
}
