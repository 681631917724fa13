package model

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryDay          Category = "Day"
	CategoryEvening      Category = "Evening"
	CategoryNight        Category = "Night"
	CategoryAnnualLeave  Category = "Annual Leave"
	CategorySickLeave    Category = "Sick Leave"
	CategoryNotRostered  Category = "Not Rostered"
	CategoryUnclassified Category = "Unclassified"
)

// Categories lists every category in the order the dashboard charts present them
var Categories = []Category{
	CategoryDay,
	CategoryEvening,
	CategoryNight,
	CategoryAnnualLeave,
	CategorySickLeave,
	CategoryNotRostered,
	CategoryUnclassified,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches a category name case-insensitively, ignoring spaces,
// so "annual leave", "AnnualLeave" and "Annual Leave" are all accepted
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	for _, c := range Categories {
		if strings.ToLower(strings.ReplaceAll(string(c), " ", "")) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Shift is a single shift line from a roster cell, e.g. "D0600-1400 (8)"
type Shift struct {
	Type  string
	Start int // HHMM
	End   int // HHMM
	Hours float64
}

// RosterEntry is one person's roster for one date
type RosterEntry struct {
	Date       time.Time
	PersonID   string
	Shifts     []Shift
	ShiftStart *int // nil when there is no shift
	ShiftEnd   *int
	Hours      float64
	CellText   string // verbatim cell text, lines joined with a space
	SMSContent string
	Category   Category
}

// NotRostered reports whether the portal cell for this entry was empty
func (e RosterEntry) NotRostered() bool {
	return len(e.Shifts) == 0 && e.CellText == ""
}
