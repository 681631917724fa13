package roster

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

var saturday = time.Date(2024, time.October, 12, 0, 0, 0, 0, time.UTC)

func TestParse_SingleShift(t *testing.T) {
	result, err := Parse("12345\tD0600-1400 (8)", saturday)

	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	expected := model.RosterEntry{
		Date:       saturday,
		PersonID:   "12345",
		Shifts:     []model.Shift{{Type: "D", Start: 600, End: 1400, Hours: 8}},
		ShiftStart: intPtr(600),
		ShiftEnd:   intPtr(1400),
		Hours:      8,
		CellText:   "D0600-1400 (8)",
		SMSContent: "Hours for (Saturday) 12/10/2024 are: D0600-1400 (8) (c) Bsecurity",
	}
	if diff := cmp.Diff(expected, result.Entries[0]); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, result.Dropped)
}

func TestParse_MultipleShiftsSplitByBreaks(t *testing.T) {
	raw := "12345\tD0600-1000 (4)<br/>E1400-1800 (4)"

	result, err := Parse(raw, saturday)

	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	entry := result.Entries[0]
	assert.Len(t, entry.Shifts, 2)
	assert.Equal(t, 600, *entry.ShiftStart)
	assert.Equal(t, 1800, *entry.ShiftEnd)
	assert.Equal(t, 8.0, entry.Hours)
	assert.Equal(t, "D0600-1000 (4) E1400-1800 (4)", entry.CellText)
}

func TestParse_EmptyCellIsNotRostered(t *testing.T) {
	for _, cell := range []string{"", "&nbsp;", "  <br> "} {
		result, err := Parse("12345\t"+cell, saturday)

		require.NoError(t, err)
		require.Len(t, result.Entries, 1)
		entry := result.Entries[0]
		assert.Nil(t, entry.ShiftStart, cell)
		assert.Equal(t, 0.0, entry.Hours)
		assert.True(t, entry.NotRostered())
		assert.Equal(t, "Not rostered for (Saturday) 12/10/2024.", entry.SMSContent)
	}
}

func TestParse_LeaveNoteKeptVerbatim(t *testing.T) {
	result, err := Parse("12345\t<span>Annual Leave</span>", saturday)

	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	entry := result.Entries[0]
	assert.Nil(t, entry.ShiftStart)
	assert.Equal(t, "Annual Leave", entry.CellText)
	assert.Contains(t, entry.SMSContent, "Annual Leave")
	assert.Equal(t, model.CategoryAnnualLeave, Classify(entry))
}

func TestParse_UnparseableShiftLineKeptAsText(t *testing.T) {
	result, err := Parse("12345\tD06OO-1400 (eight)", saturday)

	require.NoError(t, err)
	entry := result.Entries[0]
	assert.Empty(t, entry.Shifts)
	assert.Nil(t, entry.ShiftStart)
	assert.Equal(t, "D06OO-1400 (eight)", entry.CellText)
	assert.Equal(t, model.CategoryUnclassified, Classify(entry))
}

func TestParse_DecimalHours(t *testing.T) {
	result, err := Parse("12345\tN2200-0530 (7.5)", saturday)

	require.NoError(t, err)
	entry := result.Entries[0]
	assert.Equal(t, 7.5, entry.Hours)
	assert.Equal(t, 530, *entry.ShiftEnd)
	assert.Equal(t, model.CategoryNight, Classify(entry))
}

func TestParse_DropsMalformedRows(t *testing.T) {
	raw := "# personnel\tcell\n" +
		"12345\tD0600-1400 (8)\n" +
		"no tab here\n" +
		"\tE1400-2200 (8)\n" +
		"\n" +
		"67890\tSick Leave\r\n"

	result, err := Parse(raw, saturday)

	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, "12345", result.Entries[0].PersonID)
	assert.Equal(t, "67890", result.Entries[1].PersonID)
	assert.Equal(t, "Sick Leave", result.Entries[1].CellText)
}

func TestParse_UnrecognisedStructure(t *testing.T) {
	_, err := Parse("<html><body>Login failed</body></html>", saturday)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Lines)
	assert.Equal(t, 1, parseErr.Dropped)
}

func TestParse_EmptyInput(t *testing.T) {
	result, err := Parse("", saturday)

	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestParse_Idempotent(t *testing.T) {
	raw := "12345\tD0600-1400 (8)\n67890\t&nbsp;\n11111\tAnnual Leave<br>E1400-2200 (8)"

	first, err := Parse(raw, saturday)
	require.NoError(t, err)
	second, err := Parse(raw, saturday)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-parse differs (-first +second):\n%s", diff)
	}
}

func TestParser_CustomSignature(t *testing.T) {
	result, err := Parser{Signature: "-- roster bot"}.Parse("12345\tE1400-2200 (8)", saturday)

	require.NoError(t, err)
	assert.Equal(t, "Hours for (Saturday) 12/10/2024 are: E1400-2200 (8) -- roster bot", result.Entries[0].SMSContent)
}

func TestParser_NoSignature(t *testing.T) {
	result, err := Parser{}.Parse("12345\tE1400-2200 (8)", saturday)

	require.NoError(t, err)
	assert.Equal(t, "Hours for (Saturday) 12/10/2024 are: E1400-2200 (8)", result.Entries[0].SMSContent)
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, "(Saturday) 12/10/2024", FormatDay(saturday))
	assert.Equal(t, "(Monday) 1/1/2024", FormatDay(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
