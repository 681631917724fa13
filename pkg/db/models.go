package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

// ScriptLog is one row of the script_logs table. Date, ShiftStart, SMSContent and
// Hours are the columns the dashboard queries read.
type ScriptLog struct {
	ID         string
	RunID      string
	Date       string // 2006-01-02
	PersonID   string
	ShiftStart *int
	ShiftEnd   *int
	SMSContent string
	Hours      float64
	RecordedAt time.Time
}

// NewScriptLog converts a classified roster entry into a log row
func NewScriptLog(runID string, entry model.RosterEntry, recordedAt time.Time) ScriptLog {
	return ScriptLog{
		ID:         uuid.New().String(),
		RunID:      runID,
		Date:       entry.Date.Format("2006-01-02"),
		PersonID:   entry.PersonID,
		ShiftStart: entry.ShiftStart,
		ShiftEnd:   entry.ShiftEnd,
		SMSContent: entry.SMSContent,
		Hours:      entry.Hours,
		RecordedAt: recordedAt.UTC(),
	}
}
