package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

// flakyStore fails the first failures calls
type flakyStore struct {
	failures int
	calls    int
	written  [][]ScriptLog
}

func (s *flakyStore) ReplaceScriptLogs(ctx context.Context, logs []ScriptLog) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection reset")
	}
	s.written = append(s.written, logs)
	return nil
}

func (s *flakyStore) Close() error { return nil }

func testLogs() []ScriptLog {
	start := 600
	return []ScriptLog{{ID: "row-1", Date: "2024-10-12", PersonID: "12345", ShiftStart: &start, Hours: 8}}
}

func TestNewScriptLog(t *testing.T) {
	start, end := 1400, 2200
	entry := model.RosterEntry{
		Date:       time.Date(2024, time.October, 12, 0, 0, 0, 0, time.UTC),
		PersonID:   "12345",
		ShiftStart: &start,
		ShiftEnd:   &end,
		Hours:      8,
		SMSContent: "Hours for (Saturday) 12/10/2024 are: E1400-2200 (8)",
		Category:   model.CategoryEvening,
	}
	recorded := time.Date(2024, time.October, 11, 9, 0, 0, 0, time.FixedZone("AEDT", 11*3600))

	row := NewScriptLog("run-1", entry, recorded)

	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, "2024-10-12", row.Date)
	assert.Equal(t, "12345", row.PersonID)
	assert.Equal(t, 1400, *row.ShiftStart)
	assert.Equal(t, 2200, *row.ShiftEnd)
	assert.Equal(t, 8.0, row.Hours)
	assert.Equal(t, entry.SMSContent, row.SMSContent)
	assert.Equal(t, time.UTC, row.RecordedAt.Location())
	assert.True(t, recorded.Equal(row.RecordedAt))
}

func TestRetryingStore_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyStore{failures: 2}
	store := NewRetryingStore(inner, 3, time.Millisecond, zap.NewNop())

	err := store.ReplaceScriptLogs(context.Background(), testLogs())

	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Len(t, inner.written, 1)
}

func TestRetryingStore_ReturnsPersistError(t *testing.T) {
	inner := &flakyStore{failures: 10}
	store := NewRetryingStore(inner, 3, time.Millisecond, zap.NewNop())

	err := store.ReplaceScriptLogs(context.Background(), testLogs())

	var persistErr *PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, 3, persistErr.Attempts)
	assert.Equal(t, 1, persistErr.Rows)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStore_StopsWhenCancelled(t *testing.T) {
	inner := &flakyStore{failures: 10}
	store := NewRetryingStore(inner, 5, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.ReplaceScriptLogs(ctx, testLogs())

	var persistErr *PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStore_EmptyIsNoop(t *testing.T) {
	inner := &flakyStore{failures: 10}
	store := NewRetryingStore(inner, 3, time.Millisecond, zap.NewNop())

	require.NoError(t, store.ReplaceScriptLogs(context.Background(), nil))
	assert.Equal(t, 0, inner.calls)
}

func TestLogStore_LogsEachRow(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := NewLogStore(zap.New(core))

	err := store.ReplaceScriptLogs(context.Background(), testLogs())

	require.NoError(t, err)
	entries := logs.FilterMessage("SHIFT_RECORDED").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "2024-10-12", fields["date"])
	assert.Equal(t, "12345", fields["person_id"])
	assert.Equal(t, int64(600), fields["shift_start"])
}
