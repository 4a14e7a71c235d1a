package reminder

import (
	"context"
	"sync"
	"time"

	"slabot/internal/notify"
	"slabot/internal/tracker"
)

// scriptedSource returns errs[n] on the n-th call when set, issues otherwise.
type scriptedSource struct {
	mu     sync.Mutex
	issues []tracker.Issue
	errs   map[int]error
	calls  int
	seen   []string
}

func (s *scriptedSource) FetchMatchingIssues(_ context.Context, query string) ([]tracker.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = append(s.seen, query)
	if err := s.errs[s.calls]; err != nil {
		return nil, err
	}
	out := make([]tracker.Issue, len(s.issues))
	copy(out, s.issues)
	return out, nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu     sync.Mutex
	failOn map[int64]error
	got    map[int64][]string
}

func (s *recordingSink) Deliver(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[chatID]; err != nil {
		return &notify.DeliveryError{ChatID: chatID, Err: err}
	}
	if s.got == nil {
		s.got = map[int64][]string{}
	}
	s.got[chatID] = append(s.got[chatID], text)
	return nil
}

func (s *recordingSink) Broadcast(ctx context.Context, chatIDs []int64, text string) notify.Report {
	rep := notify.Report{Total: len(chatIDs)}
	for _, id := range chatIDs {
		if err := s.Deliver(ctx, id, text); err != nil {
			rep.Failed = append(rep.Failed, id)
			continue
		}
		rep.Sent++
	}
	return rep
}

func (s *recordingSink) Count(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got[chatID])
}

func (s *recordingSink) Messages(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got[chatID]...)
}

type tickCall struct {
	chatID int64
	mode   Mode
}

// funcTicker counts calls and delegates to fn when set.
type funcTicker struct {
	mu    sync.Mutex
	calls []tickCall
	fn    func(ctx context.Context, chatID int64, mode Mode) error
}

func (f *funcTicker) Tick(ctx context.Context, chatID int64, mode Mode) error {
	f.mu.Lock()
	f.calls = append(f.calls, tickCall{chatID, mode})
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, chatID, mode)
	}
	return nil
}

func (f *funcTicker) count(match func(tickCall) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if match == nil || match(c) {
			n++
		}
	}
	return n
}

func urgentIssue(key string) tracker.Issue {
	return tracker.Issue{
		Key:     key,
		Summary: "summary " + key,
		Status:  "Open",
		SLA: &tracker.SLA{
			Name: "Time to resolution",
			Ongoing: &tracker.SLACycle{
				Remaining: tracker.Duration{Millis: (30 * time.Minute).Milliseconds(), Friendly: "30m"},
				Goal:      tracker.Duration{Millis: time.Hour.Milliseconds(), Friendly: "1h"},
			},
		},
	}
}

func relaxedIssue(key string) tracker.Issue {
	iss := urgentIssue(key)
	iss.SLA.Ongoing.Remaining = tracker.Duration{Millis: (90 * time.Minute).Milliseconds(), Friendly: "1h 30m"}
	return iss
}

const (
	waitFor = 2 * time.Second
	pollAt  = 5 * time.Millisecond
)

func testConfig() Config {
	return Config{Location: time.UTC, TickTimeout: time.Second}
}
