package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/GuiaBolso/darwin"
	"github.com/diegoclair/sqlmigrator"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jakechorley/roster-notify/pkg/db"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// DB stores roster logs in a local SQLite file
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path. Use ":memory:" for tests.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises writes
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// RunMigrations applies the embedded schema migrations
func (d *DB) RunMigrations(ctx context.Context) error {
	migrator := sqlmigrator.New(d.conn, darwin.SqliteDialect{})
	if err := migrator.Migrate(sqlFiles, "sql"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// ReplaceScriptLogs inserts rows in one transaction, replacing existing rows for the
// same (date, person_id)
func (d *DB) ReplaceScriptLogs(ctx context.Context, logs []db.ScriptLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range logs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM script_logs WHERE date = ? AND person_id = ?`,
			l.Date, l.PersonID,
		); err != nil {
			return fmt.Errorf("failed to delete previous script log for %s/%s: %w", l.Date, l.PersonID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO script_logs (id, run_id, date, person_id, shift_start, shift_end, sms_content, hours, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, l.ID, l.RunID, l.Date, l.PersonID, nullInt(l.ShiftStart), nullInt(l.ShiftEnd), l.SMSContent, l.Hours, l.RecordedAt); err != nil {
			return fmt.Errorf("failed to insert script log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListScriptLogs returns rows with from <= date <= to, ordered by date and person
func (d *DB) ListScriptLogs(ctx context.Context, from, to string) ([]db.ScriptLog, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, run_id, date, person_id, shift_start, shift_end, sms_content, hours, recorded_at
		FROM script_logs
		WHERE date >= ? AND date <= ?
		ORDER BY date, person_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query script logs: %w", err)
	}
	defer rows.Close()

	var logs []db.ScriptLog
	for rows.Next() {
		var l db.ScriptLog
		var shiftStart, shiftEnd sql.NullInt64
		if err := rows.Scan(&l.ID, &l.RunID, &l.Date, &l.PersonID, &shiftStart, &shiftEnd, &l.SMSContent, &l.Hours, &l.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan script log: %w", err)
		}
		l.ShiftStart = intPtr(shiftStart)
		l.ShiftEnd = intPtr(shiftEnd)
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating script logs: %w", err)
	}

	return logs, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
