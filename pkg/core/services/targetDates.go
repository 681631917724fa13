package services

import (
	"fmt"
	"strings"
	"time"
)

// ResolveBaseDate interprets the --date argument: "today", "tomorrow" or YYYY-MM-DD.
// The result is midnight in loc.
func ResolveBaseDate(arg string, now time.Time, loc *time.Location) (time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(arg), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use 'today', 'tomorrow' or YYYY-MM-DD", arg)
	}
	return date, nil
}

// TargetDates returns the dates to process for a base date: the next day, or
// Saturday and Sunday when the base date is a Friday. exact processes base itself.
func TargetDates(base time.Time, exact bool) []time.Time {
	if exact {
		return []time.Time{base}
	}
	if base.Weekday() == time.Friday {
		return []time.Time{base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}
	}
	return []time.Time{base.AddDate(0, 0, 1)}
}
