package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/roster-notify/pkg/db"
)

// setupTestDB creates a migrated in-memory SQLite database
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := NewDB(":memory:")
	require.NoError(t, err, "Failed to create test database")

	err = database.RunMigrations(context.Background())
	require.NoError(t, err, "Failed to run migrations on test database")

	t.Cleanup(func() {
		require.NoError(t, database.Close(), "Failed to close test database")
	})

	return database
}

func ptr(v int) *int {
	return &v
}

func TestReplaceScriptLogs_InsertsRows(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	recorded := time.Date(2024, time.October, 11, 22, 0, 0, 0, time.UTC)

	err := database.ReplaceScriptLogs(ctx, []db.ScriptLog{
		{ID: "row-1", RunID: "run-1", Date: "2024-10-12", PersonID: "12345", ShiftStart: ptr(600), ShiftEnd: ptr(1400), SMSContent: "Hours for (Saturday) 12/10/2024 are: D0600-1400 (8)", Hours: 8, RecordedAt: recorded},
		{ID: "row-2", RunID: "run-1", Date: "2024-10-13", PersonID: "12345", SMSContent: "Not rostered for (Sunday) 13/10/2024.", RecordedAt: recorded},
	})
	require.NoError(t, err)

	logs, err := database.ListScriptLogs(ctx, "2024-10-01", "2024-10-31")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "row-1", logs[0].ID)
	assert.Equal(t, 600, *logs[0].ShiftStart)
	assert.Equal(t, 1400, *logs[0].ShiftEnd)
	assert.Equal(t, 8.0, logs[0].Hours)

	assert.Equal(t, "2024-10-13", logs[1].Date)
	assert.Nil(t, logs[1].ShiftStart, "no shift is stored as NULL")
	assert.Nil(t, logs[1].ShiftEnd)
	assert.Equal(t, 0.0, logs[1].Hours)
}

func TestReplaceScriptLogs_RerunReplacesSameDateAndPerson(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	first := []db.ScriptLog{
		{ID: "row-1", RunID: "run-1", Date: "2024-10-12", PersonID: "12345", SMSContent: "Not rostered for (Saturday) 12/10/2024."},
		{ID: "row-2", RunID: "run-1", Date: "2024-10-12", PersonID: "67890", SMSContent: "Annual Leave"},
	}
	require.NoError(t, database.ReplaceScriptLogs(ctx, first))

	rerun := []db.ScriptLog{
		{ID: "row-3", RunID: "run-2", Date: "2024-10-12", PersonID: "12345", ShiftStart: ptr(1400), Hours: 8, SMSContent: "Hours for (Saturday) 12/10/2024 are: E1400-2200 (8)"},
	}
	require.NoError(t, database.ReplaceScriptLogs(ctx, rerun))

	logs, err := database.ListScriptLogs(ctx, "2024-10-12", "2024-10-12")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "row-3", logs[0].ID)
	assert.Equal(t, "run-2", logs[0].RunID)
	assert.Equal(t, 1400, *logs[0].ShiftStart)
	assert.Equal(t, "row-2", logs[1].ID, "other people on the same date are untouched")
}

func TestReplaceScriptLogs_Empty(t *testing.T) {
	database := setupTestDB(t)

	require.NoError(t, database.ReplaceScriptLogs(context.Background(), nil))
}

func TestListScriptLogs_DateRange(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.ReplaceScriptLogs(ctx, []db.ScriptLog{
		{ID: "a", RunID: "r", Date: "2024-09-30", PersonID: "1"},
		{ID: "b", RunID: "r", Date: "2024-10-01", PersonID: "1"},
		{ID: "c", RunID: "r", Date: "2024-10-31", PersonID: "1"},
		{ID: "d", RunID: "r", Date: "2024-11-01", PersonID: "1"},
	}))

	logs, err := database.ListScriptLogs(ctx, "2024-10-01", "2024-10-31")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "b", logs[0].ID)
	assert.Equal(t, "c", logs[1].ID)
}
