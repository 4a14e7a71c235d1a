package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "slabot/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []int64
}

func (r *recordingSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	r.to = append(r.to, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) snapshot() ([]string, []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...), append([]int64(nil), r.to...)
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("nothing", String("k", "v"))
	l.With(Int("n", 1)).Error("still nothing", Err(errors.New("x")))
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf, "debug").With(String("comp", "reminder"))
	l.Info("tick finished", Int64("chat_id", 42), Duration("took", time.Second))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tick finished", rec["message"])
	assert.Equal(t, "reminder", rec["comp"])
	assert.EqualValues(t, 42, rec["chat_id"])
	assert.Equal(t, "info", rec["level"])
}

func TestJSONLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in, LevelInfo), in)
	}
}

func TestServiceMirrorsWarningsToChat(t *testing.T) {
	sender := &recordingSender{}
	svc, log := New(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			ChatID:     777,
			MinLevel:   "warn",
			RatePerSec: 50,
		},
	}, sender)
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("routine")
	log.Warn("fetch failed", String("query", "project = OPS"))

	require.Eventually(t, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent, to := sender.snapshot()
	assert.Equal(t, []int64{777}, to)
	assert.Contains(t, sent[0], "[WARN] fetch failed")
	assert.Contains(t, sent[0], "- query=project = OPS")
}

func TestFormatRecordPlainText(t *testing.T) {
	assert.Equal(t, "not json", formatRecord([]byte("  not json \n")))
	out := formatRecord([]byte(`{"level":"error","message":"boom","b":"2","a":1}`))
	assert.Equal(t, "[ERROR] boom\n- a=1\n- b=2", out)
}
