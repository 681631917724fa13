// Package portal reads roster cells from the Microster self-service portal.
//
// FetchRoster returns one line per configured personnel id:
//
//	<person-id>\t<date cell inner html>
//
// which is the raw format consumed by roster.Parse.
package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/pkg/core/roster"
)

const (
	DefaultURL               = "https://dpw.portal.tambla.net/Microster.SelfService/Default.aspx"
	DefaultNavigationTimeout = 30 * time.Second

	personnelIDField = "ctl00_ContentPlaceHolder1_txtPersonnelId"
	passwordField    = "ctl00_ContentPlaceHolder1_txtPassword"
	monthLabel       = "ctl00_ContentPlaceHolder1_calendar_lblCurrentMonth"
	nextMonthLink    = "ctl00_ContentPlaceHolder1_calendar_lnkNextMonth"
	dateCellPrefix   = "ctl00_ContentPlaceHolder1_calendar_DateCell"

	// The portal only ever shows the current and following months
	maxMonthClicks = 12
)

// Config holds the portal connection settings
type Config struct {
	URL               string
	PersonnelIDs      []string
	Passwords         map[string]string // keyed by personnel id
	Headless          bool
	NavigationTimeout time.Duration
	MonthOffsets      map[int]int // calendar month -> date cell index offset
	ChromeBin         string
}

// calendarPage is a logged-in view of the roster calendar
type calendarPage interface {
	Login(personnelID, password string) error
	CurrentMonth() (string, error)
	NextMonth(expected string) error
	// DateCellHTML returns the cell's inner HTML, or found=false when the cell is absent
	DateCellHTML(cellID string) (html string, found bool, err error)
	Close() error
}

type pageOpener func(ctx context.Context, cfg Config) (calendarPage, error)

// Session fetches roster cells through a headless browser. It implements roster.Fetcher.
type Session struct {
	cfg    Config
	open   pageOpener
	logger *zap.Logger
}

// NewSession creates a Session backed by a go-rod controlled Chrome
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if len(cfg.PersonnelIDs) == 0 {
		return nil, fmt.Errorf("at least one personnel id is required")
	}
	for _, id := range cfg.PersonnelIDs {
		if cfg.Passwords[id] == "" {
			return nil, fmt.Errorf("no portal password configured for personnel id %s", id)
		}
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}

	return &Session{cfg: cfg, open: openRodPage, logger: logger}, nil
}

// FetchRoster logs in once per personnel id and reads the cell for date.
// Returns roster.ErrNotReady when any person's date cell is not on the calendar yet.
func (s *Session) FetchRoster(ctx context.Context, date time.Time) (string, error) {
	var rows []string

	for _, personnelID := range s.cfg.PersonnelIDs {
		cell, err := s.fetchCell(ctx, personnelID, date)
		if err != nil {
			return "", err
		}
		rows = append(rows, FormatRow(personnelID, cell))
	}

	return strings.Join(rows, "\n"), nil
}

func (s *Session) fetchCell(ctx context.Context, personnelID string, date time.Time) (string, error) {
	page, err := s.open(ctx, s.cfg)
	if err != nil {
		return "", fmt.Errorf("failed to open portal: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("Failed to close portal page", zap.Error(err))
		}
	}()

	if err := page.Login(personnelID, s.cfg.Passwords[personnelID]); err != nil {
		return "", fmt.Errorf("failed to log in as %s: %w", personnelID, err)
	}
	s.logger.Debug("Logged in to portal", zap.String("person_id", personnelID))

	target := MonthLabel(date)
	for clicks := 0; ; clicks++ {
		current, err := page.CurrentMonth()
		if err != nil {
			return "", fmt.Errorf("failed to read calendar month: %w", err)
		}
		if strings.TrimSpace(current) == target {
			break
		}
		if clicks == maxMonthClicks {
			return "", fmt.Errorf("calendar did not reach %s (showing %s)", target, current)
		}
		s.logger.Debug("Navigating to next month",
			zap.String("current", current),
			zap.String("target", target))
		if err := page.NextMonth(target); err != nil {
			return "", fmt.Errorf("failed to navigate to %s: %w", target, err)
		}
	}

	cellID := DateCellID(date, s.cfg.MonthOffsets)
	html, found, err := page.DateCellHTML(cellID)
	if err != nil {
		return "", fmt.Errorf("failed to read date cell %s: %w", cellID, err)
	}
	if !found {
		s.logger.Info("Date cell not on calendar yet",
			zap.String("person_id", personnelID),
			zap.String("cell_id", cellID))
		return "", roster.ErrNotReady
	}

	return html, nil
}

// MonthLabel renders the calendar header text for date, e.g. "October 2024"
func MonthLabel(date time.Time) string {
	return date.Format("January 2006")
}

// DateCellID returns the element id of date's calendar cell
func DateCellID(date time.Time, offsets map[int]int) string {
	return fmt.Sprintf("%s%d", dateCellPrefix, offsets[int(date.Month())]+date.Day())
}

// FormatRow renders one raw roster line. Line breaks and tabs inside the cell are
// flattened so the row stays on one line.
func FormatRow(personnelID, cellHTML string) string {
	flat := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(cellHTML)
	return personnelID + "\t" + strings.TrimSpace(flat)
}
