package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "slabot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.IsType(t, Nop{}, st)
		assert.NoError(t, st.AppendAudit(context.Background(), AuditEntry{}))
		_, err = st.RecentAudit(context.Background(), 5)
		assert.ErrorIs(t, err, ErrDisabled)
	}
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{}
	for _, driver := range []string{"file", "sqlite"} {
		dir := t.TempDir()
		st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, "slabot.db"), BusyTimeout: time.Second}, logx.Nop())
		require.NoError(t, err, driver)
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestRecentAuditNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range testStores(t) {
		t.Run(driver, func(t *testing.T) {
			for i := 1; i <= 5; i++ {
				require.NoError(t, st.AppendAudit(ctx, AuditEntry{
					At:      time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
					ActorID: int64(i),
					ChatID:  -100,
					Command: "check",
					Args:    strconv.Itoa(i),
					OK:      i%2 == 1,
					TookMS:  int64(i * 10),
				}))
			}

			got, err := st.RecentAudit(ctx, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, int64(5), got[0].ActorID)
			assert.Equal(t, int64(4), got[1].ActorID)
			assert.Equal(t, int64(3), got[2].ActorID)
			assert.True(t, got[0].OK)
			assert.False(t, got[1].OK)
			assert.Equal(t, "check", got[0].Command)
			assert.True(t, got[0].At.Equal(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)))

			all, err := st.RecentAudit(ctx, 50)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "bot.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Command: "start"}))
	f, err := os.OpenFile(filepath.Join(dir, "bot.audit.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Command: "stop"}))

	got, err := st.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stop", got[0].Command)
	assert.Equal(t, "start", got[1].Command)
	assert.False(t, got[1].At.IsZero())
}

func TestClosedFileStore(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.db")}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	assert.Error(t, st.AppendAudit(context.Background(), AuditEntry{}))
}
