package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PersistError is returned when rows could not be written after all retries
type PersistError struct {
	Rows     int
	Attempts int
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist %d rows after %d attempts: %v", e.Rows, e.Attempts, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// LogStore records rows as structured log events only, for runs without a database
type LogStore struct {
	logger *zap.Logger
}

func NewLogStore(logger *zap.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) ReplaceScriptLogs(ctx context.Context, logs []ScriptLog) error {
	for _, l := range logs {
		s.logger.Info("SHIFT_RECORDED",
			zap.String("id", l.ID),
			zap.String("run_id", l.RunID),
			zap.String("date", l.Date),
			zap.String("person_id", l.PersonID),
			zap.Intp("shift_start", l.ShiftStart),
			zap.Intp("shift_end", l.ShiftEnd),
			zap.Float64("hours", l.Hours),
			zap.String("sms_content", l.SMSContent))
	}
	return nil
}

func (s *LogStore) Close() error {
	return nil
}

// RetryingStore retries failed writes with a doubling backoff before giving up
// with a PersistError
type RetryingStore struct {
	RosterLogStore
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

func NewRetryingStore(store RosterLogStore, attempts int, backoff time.Duration, logger *zap.Logger) *RetryingStore {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingStore{
		RosterLogStore: store,
		attempts:       attempts,
		backoff:        backoff,
		logger:         logger,
	}
}

func (s *RetryingStore) ReplaceScriptLogs(ctx context.Context, logs []ScriptLog) error {
	if len(logs) == 0 {
		return nil
	}

	wait := s.backoff
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.RosterLogStore.ReplaceScriptLogs(ctx, logs)
		if err == nil {
			return nil
		}

		s.logger.Warn("Failed to persist roster logs",
			zap.Int("attempt", attempt),
			zap.Int("rows", len(logs)),
			zap.String("error_kind", "persist"),
			zap.Error(err))

		if attempt == s.attempts {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &PersistError{Rows: len(logs), Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
		wait *= 2
	}

	return &PersistError{Rows: len(logs), Attempts: s.attempts, Err: err}
}
