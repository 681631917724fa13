package db

import "context"

// RosterLogStore defines the persistence operations for roster log rows.
// The postgres, sqlite and log-only stores all implement this interface.
type RosterLogStore interface {
	// ReplaceScriptLogs writes rows, replacing any existing rows with the same
	// (date, person_id) so re-running a date never duplicates it
	ReplaceScriptLogs(ctx context.Context, logs []ScriptLog) error
	Close() error
}

// Migrator is implemented by stores that own their schema
type Migrator interface {
	RunMigrations(ctx context.Context) error
}

// ScriptLogReader lists stored rows for a date range (inclusive, "2006-01-02")
type ScriptLogReader interface {
	ListScriptLogs(ctx context.Context, from, to string) ([]ScriptLog, error)
}
