package roster

import (
	"strings"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

// Classify maps an entry to exactly one category. Leave notes take precedence over
// the shift start time, matching the CASE order of the dashboard queries.
func Classify(entry model.RosterEntry) model.Category {
	content := strings.ToLower(entry.SMSContent)

	switch {
	case strings.Contains(content, "annual leave"):
		return model.CategoryAnnualLeave
	case strings.Contains(content, "sick leave"):
		return model.CategorySickLeave
	case entry.Hours == 0 && strings.Contains(content, "not rostered"):
		return model.CategoryNotRostered
	}

	if entry.ShiftStart == nil {
		return model.CategoryUnclassified
	}

	switch *entry.ShiftStart {
	case 600, 700, 800:
		return model.CategoryDay
	case 1400:
		return model.CategoryEvening
	case 2200:
		return model.CategoryNight
	default:
		return model.CategoryUnclassified
	}
}

// ClassifyAll sets Category on every entry in place
func ClassifyAll(entries []model.RosterEntry) {
	for i := range entries {
		entries[i].Category = Classify(entries[i])
	}
}
