package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/ansultad/internal/db"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndQuery(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.AppendWithSource(EventCommandSent, "cmd-1", "bridge", map[string]any{
		"command":     "dim_50",
		"repetitions": 50,
	}))
	require.NoError(t, l.Append(EventCommandFailed, "cmd-2", map[string]any{"error": "not responding"}))
	require.NoError(t, l.Append(EventAddressLearned, "", nil))

	sent, err := l.GetByType(EventCommandSent, 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "bridge", sent[0].Source)
	assert.Equal(t, "cmd-1", sent[0].CommandID)
	assert.Equal(t, "dim_50", sent[0].Payload["command"])
	assert.Equal(t, float64(50), sent[0].Payload["repetitions"])

	learned, err := l.GetByType(EventAddressLearned, 10)
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Nil(t, learned[0].Payload)

	byCmd, err := l.GetByCommand("cmd-2")
	require.NoError(t, err)
	require.Len(t, byCmd, 1)
	assert.Equal(t, EventCommandFailed, byCmd[0].EventType)
}

func TestGetByTypeNewestFirst(t *testing.T) {
	l := newLedger(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.Append(EventRemoteCommand, id, nil))
	}

	entries, err := l.GetByType(EventRemoteCommand, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].CommandID)
	assert.Equal(t, "b", entries[1].CommandID)
}

func TestDeleteOlderThan(t *testing.T) {
	l := newLedger(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, l.Append(EventCommandSent, "old", nil))
	l.now = func() time.Time { return now }
	require.NoError(t, l.Append(EventCommandSent, "new", nil))

	n, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := l.GetByType(EventCommandSent, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].CommandID)
}
