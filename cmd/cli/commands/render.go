package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jakechorley/roster-notify/pkg/core/model"
	"github.com/jakechorley/roster-notify/pkg/core/roster"
	"github.com/jakechorley/roster-notify/pkg/db"
	"github.com/jakechorley/roster-notify/pkg/postgres"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = cellStyle.Foreground(lipgloss.Color("245"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderReport lays out report rows as Month | Category | Total
func renderReport(rows []postgres.ReportRow) string {
	t := newTable("Month", "Category", "Total")
	for _, r := range rows {
		t.Row(r.Month, r.Category, strconv.FormatInt(r.Total, 10))
	}
	return t.String()
}

// renderHistory lays out stored rows with the category the dashboard would give them
func renderHistory(logs []db.ScriptLog) string {
	t := newTable("Date", "Person", "Category", "Shift", "Hours", "Message")
	for _, l := range logs {
		t.Row(
			l.Date,
			l.PersonID,
			string(logCategory(l)),
			formatShift(l.ShiftStart, l.ShiftEnd),
			strconv.FormatFloat(l.Hours, 'f', -1, 64),
			l.SMSContent,
		)
	}
	return t.String()
}

// logCategory classifies a stored row from the columns the dashboard reads
func logCategory(l db.ScriptLog) model.Category {
	return roster.Classify(model.RosterEntry{
		ShiftStart: l.ShiftStart,
		ShiftEnd:   l.ShiftEnd,
		Hours:      l.Hours,
		SMSContent: l.SMSContent,
	})
}

func formatShift(start, end *int) string {
	if start == nil {
		return "-"
	}
	if end == nil {
		return fmt.Sprintf("%04d", *start)
	}
	return fmt.Sprintf("%04d-%04d", *start, *end)
}

// parseMonth reads YYYY-MM, defaulting to the month containing now
func parseMonth(arg string, now time.Time) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	month, err := time.ParseInLocation("2006-01", arg, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM, got %q", arg)
	}
	return month, nil
}

// dateRange resolves the history bounds. Missing bounds cover the last 30 days up to today.
func dateRange(from, to string, now time.Time) (string, string, error) {
	const layout = "2006-01-02"

	if to == "" {
		to = now.Format(layout)
	}
	toDate, err := time.ParseInLocation(layout, to, now.Location())
	if err != nil {
		return "", "", fmt.Errorf("--to must be YYYY-MM-DD, got %q", to)
	}

	if from == "" {
		from = toDate.AddDate(0, 0, -30).Format(layout)
	}
	fromDate, err := time.ParseInLocation(layout, from, now.Location())
	if err != nil {
		return "", "", fmt.Errorf("--from must be YYYY-MM-DD, got %q", from)
	}

	if fromDate.After(toDate) {
		return "", "", fmt.Errorf("--from %s is after --to %s", from, to)
	}

	return from, to, nil
}
