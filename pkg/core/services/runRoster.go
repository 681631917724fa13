package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/core/model"
	"github.com/jakechorley/roster-notify/pkg/core/roster"
	"github.com/jakechorley/roster-notify/pkg/db"
)

// RosterSource yields the final roster entries for a date
type RosterSource interface {
	ObtainFinalRoster(ctx context.Context, date time.Time) ([]model.RosterEntry, error)
}

// SMSSender delivers a text message to one phone number
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender delivers operator alerts
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// NotifyError records a failed delivery to one recipient
type NotifyError struct {
	Recipient string
	Phone     string
	Err       error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("failed to notify %s (%s): %v", e.Recipient, e.Phone, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// RunDeps wires the collaborators of a roster run
type RunDeps struct {
	Source     RosterSource
	SMS        SMSSender   // may be nil when SMS is disabled
	Email      EmailSender // optional operator alerts
	Store      db.RosterLogStore
	Recipients []config.Recipient
	Categories []model.Category // nil means notify on every category
	AlertEmail string
	Logger     *zap.Logger
}

// RunOptions controls a single run
type RunOptions struct {
	Dates  []time.Time
	Now    time.Time // the send day that recipient rrules are evaluated against
	NoSMS  bool
	DryRun bool // no SMS and no persistence
}

// RunResult summarises what a run did
type RunResult struct {
	RunID        string
	Entries      []model.RosterEntry
	Message      string
	Notified     []string
	NotifyErrors []*NotifyError
	Persisted    int
}

// RunRoster obtains the final roster for each date, classifies the entries, texts the
// eligible recipients and records one row per entry.
//
// A date that never becomes final aborts the whole run before anything is sent,
// and the recipients flagged alertOnFailure are told instead.
func RunRoster(ctx context.Context, deps RunDeps, opts RunOptions) (*RunResult, error) {
	result := &RunResult{RunID: uuid.New().String()}
	logger := deps.Logger.With(zap.String("run_id", result.RunID))

	if len(opts.Dates) == 0 {
		return nil, fmt.Errorf("no dates to process")
	}

	for _, date := range opts.Dates {
		logger.Info("Processing date",
			zap.String("date", date.Format("2006-01-02")),
			zap.String("day", date.Weekday().String()))

		entries, err := deps.Source.ObtainFinalRoster(ctx, date)
		if err != nil {
			reportFailure(ctx, deps, opts, logger, date, err)
			return result, fmt.Errorf("failed to obtain roster for %s: %w", date.Format("2006-01-02"), err)
		}

		roster.ClassifyAll(entries)
		for _, entry := range entries {
			logger.Debug("Roster entry",
				zap.String("date", entry.Date.Format("2006-01-02")),
				zap.String("person_id", entry.PersonID),
				zap.String("category", string(entry.Category)),
				zap.Float64("hours", entry.Hours),
				zap.Intp("shift_start", entry.ShiftStart))
		}
		result.Entries = append(result.Entries, entries...)
	}

	result.Message = CombineMessages(result.Entries, deps.Categories)

	switch {
	case result.Message == "":
		logger.Info("No messages to send")
	case opts.NoSMS || opts.DryRun:
		logger.Info("SMS disabled, not sending", zap.String("sms_content", result.Message))
	default:
		notify(ctx, deps, opts, logger, result)
	}

	if opts.DryRun {
		logger.Info("Dry run, not recording entries", zap.Int("entries", len(result.Entries)))
		return result, nil
	}

	recordedAt := time.Now().UTC()
	logs := make([]db.ScriptLog, 0, len(result.Entries))
	for _, entry := range result.Entries {
		logs = append(logs, db.NewScriptLog(result.RunID, entry, recordedAt))
	}

	if err := deps.Store.ReplaceScriptLogs(ctx, logs); err != nil {
		reportFailure(ctx, deps, opts, logger, time.Time{}, err)
		return result, err
	}
	result.Persisted = len(logs)

	logger.Info("Roster run complete",
		zap.Int("entries", len(result.Entries)),
		zap.Int("notified", len(result.Notified)),
		zap.Int("notify_errors", len(result.NotifyErrors)),
		zap.Int("persisted", result.Persisted))

	return result, nil
}

// CombineMessages joins the SMS text of every entry whose category is in categories
// (all entries when categories is empty). Rows for several people are prefixed with
// the person id.
func CombineMessages(entries []model.RosterEntry, categories []model.Category) string {
	people := map[string]bool{}
	for _, e := range entries {
		people[e.PersonID] = true
	}

	var lines []string
	for _, e := range entries {
		if len(categories) > 0 && !slices.Contains(categories, e.Category) {
			continue
		}
		line := e.SMSContent
		if len(people) > 1 {
			line = e.PersonID + ": " + line
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func notify(ctx context.Context, deps RunDeps, opts RunOptions, logger *zap.Logger, result *RunResult) {
	if deps.SMS == nil {
		logger.Warn("No SMS sender configured, not sending")
		return
	}

	for _, recipient := range deps.Recipients {
		eligible, err := ReceivesOn(recipient, opts.Now)
		if err != nil {
			// Rules are validated at config load
			logger.Error("Invalid recipient rrule", zap.String("recipient", recipient.Name), zap.Error(err))
			continue
		}
		if !eligible {
			logger.Debug("Recipient not scheduled today", zap.String("recipient", recipient.Name))
			continue
		}

		if err := deps.SMS.SendSMS(ctx, recipient.Phone, result.Message); err != nil {
			notifyErr := &NotifyError{Recipient: recipient.Name, Phone: recipient.Phone, Err: err}
			result.NotifyErrors = append(result.NotifyErrors, notifyErr)
			logger.Error("SMS_FAILED", zap.String("recipient", recipient.Name), zap.Error(err))
			continue
		}

		result.Notified = append(result.Notified, recipient.Name)
		logger.Info("SMS_SENT",
			zap.String("recipient", recipient.Name),
			zap.String("sms_content", result.Message))
	}
}

// ReceivesOn reports whether recipient should be texted on day. Recipients without
// an rrule receive every message. Rules are day selectors with no start of their own;
// config validation rejects INTERVAL, COUNT and UNTIL.
func ReceivesOn(recipient config.Recipient, day time.Time) (bool, error) {
	if recipient.RRule == "" {
		return true, nil
	}

	rule, err := rrule.StrToRRule(recipient.RRule)
	if err != nil {
		return false, fmt.Errorf("failed to parse rrule for %s: %w", recipient.Name, err)
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)

	// Anchor a week back so weekly and daily rules both produce an occurrence on day
	rule.DTStart(dayStart.AddDate(0, 0, -7))

	return len(rule.Between(dayStart, dayEnd, true)) > 0, nil
}

// FailureMessage is the alert text for a failed run
func FailureMessage(err error) string {
	var giveUp *roster.GiveUpError
	if errors.As(err, &giveUp) {
		return fmt.Sprintf("Retry limit (%d) reached. Could not retrieve finalized roster information.", giveUp.Attempts)
	}
	return fmt.Sprintf("Script encountered an error: %v", err)
}

func reportFailure(ctx context.Context, deps RunDeps, opts RunOptions, logger *zap.Logger, date time.Time, runErr error) {
	message := FailureMessage(runErr)

	fields := []zap.Field{
		zap.String("error_kind", roster.ErrorKind(runErr)),
		zap.String("sms_content", message),
		zap.Error(runErr),
	}
	if !date.IsZero() {
		fields = append(fields, zap.String("date", date.Format("2006-01-02")))
	}
	var giveUp *roster.GiveUpError
	if errors.As(runErr, &giveUp) {
		logger.Error("RETRY_LIMIT_REACHED", append(fields, zap.Int("retry_attempts", giveUp.Attempts))...)
	} else {
		logger.Error("UNEXPECTED_ERROR", fields...)
	}

	if opts.DryRun {
		return
	}

	// Alerts go out even if the run context was cancelled
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	if deps.SMS != nil && !opts.NoSMS {
		for _, recipient := range deps.Recipients {
			if !recipient.AlertOnFailure {
				continue
			}
			if err := deps.SMS.SendSMS(alertCtx, recipient.Phone, message); err != nil {
				logger.Error("Failed to send failure alert", zap.String("recipient", recipient.Name), zap.Error(err))
				continue
			}
			logger.Info("Failure alert sent", zap.String("recipient", recipient.Name))
		}
	}

	if deps.Email != nil && deps.AlertEmail != "" {
		if err := deps.Email.SendEmail(alertCtx, deps.AlertEmail, "roster-notify run failed", message); err != nil {
			logger.Error("Failed to send failure email", zap.String("to", deps.AlertEmail), zap.Error(err))
		}
	}
}
