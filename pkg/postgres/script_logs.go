package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/roster-notify/pkg/db"
)

// ReplaceScriptLogs inserts roster log rows in one transaction, deleting any existing
// row for the same (date, person_id) first
func (d *DB) ReplaceScriptLogs(ctx context.Context, logs []db.ScriptLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, l := range logs {
		_, err := tx.Exec(ctx, `
			DELETE FROM script_logs WHERE date = $1 AND person_id = $2
		`, l.Date, l.PersonID)
		if err != nil {
			return fmt.Errorf("failed to delete previous script log for %s/%s: %w", l.Date, l.PersonID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO script_logs (id, run_id, date, person_id, shift_start, shift_end, sms_content, hours, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, l.ID, l.RunID, l.Date, l.PersonID, l.ShiftStart, l.ShiftEnd, l.SMSContent, l.Hours, l.RecordedAt)
		if err != nil {
			return fmt.Errorf("failed to insert script log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListScriptLogs returns rows with from <= date <= to, ordered by date and person
func (d *DB) ListScriptLogs(ctx context.Context, from, to string) ([]db.ScriptLog, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, run_id, date, person_id, shift_start, shift_end, sms_content, hours, recorded_at
		FROM script_logs
		WHERE date >= $1 AND date <= $2
		ORDER BY date, person_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query script logs: %w", err)
	}
	defer rows.Close()

	var logs []db.ScriptLog
	for rows.Next() {
		var l db.ScriptLog
		var date time.Time
		if err := rows.Scan(&l.ID, &l.RunID, &date, &l.PersonID, &l.ShiftStart, &l.ShiftEnd, &l.SMSContent, &l.Hours, &l.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan script log: %w", err)
		}
		l.Date = date.Format("2006-01-02")
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating script logs: %w", err)
	}

	return logs, nil
}
