package roster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

const DefaultSignature = "(c) Bsecurity"

// shiftLinePattern matches a roster cell shift line such as "D0600-1400 (8)" or "N2200-0600 (7.5)"
var shiftLinePattern = regexp.MustCompile(`^([A-Za-z])\s*(\d{1,4})\s*-\s*(\d{1,4})\s*\(\s*(\d+(?:\.\d+)?)\s*\)$`)

// lineBreakTags split cell text into separate lines
var lineBreakTags = map[string]bool{
	"br":  true,
	"div": true,
	"p":   true,
	"tr":  true,
	"li":  true,
}

// ParseResult holds the entries parsed from raw roster text
type ParseResult struct {
	Entries []model.RosterEntry
	Dropped int // malformed rows skipped
}

// Parser turns raw portal text into roster entries.
//
// Raw text holds one row per person: "<person id>\t<cell html>". Blank lines and
// lines starting with '#' are ignored.
type Parser struct {
	Signature string
}

// Parse parses raw roster text with the default message signature
func Parse(raw string, date time.Time) (ParseResult, error) {
	return Parser{Signature: DefaultSignature}.Parse(raw, date)
}

// Parse parses raw roster text for the given date. Malformed rows are dropped and
// counted; a ParseError is returned only when non-empty input yields no rows at all.
func (p Parser) Parse(raw string, date time.Time) (ParseResult, error) {
	result := ParseResult{Entries: []model.RosterEntry{}}
	lines := 0

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines++

		personID, cellHTML, ok := strings.Cut(line, "\t")
		personID = strings.TrimSpace(personID)
		if !ok || personID == "" {
			result.Dropped++
			continue
		}

		result.Entries = append(result.Entries, p.parseCell(personID, cellHTML, date))
	}

	if lines > 0 && len(result.Entries) == 0 {
		return result, &ParseError{Lines: lines, Dropped: result.Dropped, Reason: "no person rows found"}
	}

	return result, nil
}

func (p Parser) parseCell(personID, cellHTML string, date time.Time) model.RosterEntry {
	entry := model.RosterEntry{
		Date:     date,
		PersonID: personID,
	}

	var text []string
	for _, line := range cellLines(cellHTML) {
		shift, ok := parseShiftLine(line)
		if ok {
			entry.Shifts = append(entry.Shifts, shift)
			entry.Hours += shift.Hours
		}
		text = append(text, line)
	}
	entry.CellText = strings.Join(text, " ")

	if len(entry.Shifts) > 0 {
		start := entry.Shifts[0].Start
		end := entry.Shifts[len(entry.Shifts)-1].End
		entry.ShiftStart = &start
		entry.ShiftEnd = &end
	}

	entry.SMSContent = ComposeMessage(entry, p.Signature)
	return entry
}

// cellLines extracts the visible text lines of a roster cell
func cellLines(cellHTML string) []string {
	var lines []string
	var current strings.Builder

	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(cellHTML))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed markup; either way the cell ends here
			flush()
			return lines
		case html.TextToken:
			current.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if lineBreakTags[string(name)] {
				flush()
			}
		}
	}
}

func parseShiftLine(line string) (model.Shift, bool) {
	m := shiftLinePattern.FindStringSubmatch(line)
	if m == nil {
		return model.Shift{}, false
	}

	start, err := strconv.Atoi(m[2])
	if err != nil {
		return model.Shift{}, false
	}
	end, err := strconv.Atoi(m[3])
	if err != nil {
		return model.Shift{}, false
	}
	hours, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return model.Shift{}, false
	}

	return model.Shift{
		Type:  strings.ToUpper(m[1]),
		Start: start,
		End:   end,
		Hours: hours,
	}, true
}

// ComposeMessage builds the SMS text for an entry. The cell text is always included
// verbatim so leave phrases survive into the persisted sms_content column.
func ComposeMessage(entry model.RosterEntry, signature string) string {
	day := FormatDay(entry.Date)
	if entry.NotRostered() {
		return fmt.Sprintf("Not rostered for %s.", day)
	}

	msg := fmt.Sprintf("Hours for %s are: %s", day, entry.CellText)
	if signature != "" {
		msg += " " + signature
	}
	return msg
}

// FormatDay formats a date the way roster messages refer to it, e.g. "(Saturday) 12/10/2024"
func FormatDay(date time.Time) string {
	return fmt.Sprintf("(%s) %d/%d/%d", date.Weekday(), date.Day(), int(date.Month()), date.Year())
}
