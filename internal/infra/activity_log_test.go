package infra

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulrichando/ParentShield/internal/domain"
)

func newTestActivityLog(t *testing.T) (*SQLCipherActivityLog, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := NewActivityLog(dir, DeriveKey("machine-a"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func TestActivityLog_RecordAndRecent(t *testing.T) {
	l, _ := newTestActivityLog(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"steam", "discord", "chatgpt"} {
		require.NoError(t, l.Record(domain.ActivityEvent{
			Kind:      domain.ActivityProcessTerminated,
			Target:    name,
			PID:       100 + i,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "chatgpt", events[0].Target, "newest first")
	assert.Equal(t, 102, events[0].PID)
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), events[0].Timestamp.UnixMilli())
	assert.Equal(t, "steam", events[2].Target)

	events, err = l.Recent(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestActivityLog_ZeroTimestampDefaultsToNow(t *testing.T) {
	l, _ := newTestActivityLog(t)
	before := time.Now().Add(-time.Second)

	require.NoError(t, l.Record(domain.ActivityEvent{Kind: domain.ActivityProcessTerminated, Target: "x"}))

	events, err := l.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.After(before))
}

func TestActivityLog_PersistsAndIsEncrypted(t *testing.T) {
	dir := t.TempDir()
	l, err := NewActivityLog(dir, DeriveKey("machine-a"))
	require.NoError(t, err)
	require.NoError(t, l.Record(domain.ActivityEvent{Kind: domain.ActivityProcessTerminated, Target: "secretgame"}))
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secretgame")
	assert.NotContains(t, string(raw), "SQLite format 3")

	reopened, err := NewActivityLog(dir, DeriveKey("machine-a"))
	require.NoError(t, err)
	defer reopened.Close()
	events, err := reopened.Recent(5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "secretgame", events[0].Target)
}

func TestActivityLog_WrongKey(t *testing.T) {
	dir := t.TempDir()
	l, err := NewActivityLog(dir, DeriveKey("machine-a"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = NewActivityLog(dir, DeriveKey("machine-b"))
	assert.Error(t, err)
}

func TestClampActivityLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultActivityLimit},
		{-5, DefaultActivityLimit},
		{1, 1},
		{MaxActivityLimit, MaxActivityLimit},
		{MaxActivityLimit + 1, MaxActivityLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampActivityLimit(tt.in))
	}
}
