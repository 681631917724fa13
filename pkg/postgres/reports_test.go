package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/roster-notify/pkg/core/model"
)

func TestReportQuery_AllReportsEmbedded(t *testing.T) {
	for _, report := range Reports() {
		query, err := ReportQuery(report)
		require.NoError(t, err, report)
		assert.Contains(t, query, "FROM script_logs", report)
	}
}

func TestReportQuery_Unknown(t *testing.T) {
	_, err := ReportQuery("weekly")
	assert.Error(t, err)
}

// The dashboard buckets must stay in step with roster.Classify
func TestReportQuery_CoversEveryCategory(t *testing.T) {
	for _, report := range Reports() {
		query, err := ReportQuery(report)
		require.NoError(t, err)

		for _, category := range model.Categories {
			assert.Contains(t, query, "'"+string(category)+"'", "%s is missing %s", report, category)
		}
	}
}

func TestReportQuery_LeaveCheckedBeforeShiftBuckets(t *testing.T) {
	for _, report := range Reports() {
		query, err := ReportQuery(report)
		require.NoError(t, err)

		annual := strings.Index(query, "'annual leave'")
		sick := strings.Index(query, "'sick leave'")
		notRostered := strings.Index(query, "'not rostered'")
		day := strings.Index(query, "IN (600, 700, 800)")

		assert.True(t, annual < sick && sick < notRostered && notRostered < day, report)
	}
}

func TestMigrations_CreateScriptLogs(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/000001_create_script_logs.sql")
	require.NoError(t, err)

	sql := string(content)
	for _, column := range []string{"date DATE", "shift_start INTEGER", "sms_content TEXT", "hours NUMERIC", "person_id TEXT"} {
		assert.Contains(t, sql, column)
	}
	assert.Contains(t, sql, "(date, person_id)")
}
