package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"
)

//go:embed reports/*.sql
var reportsFS embed.FS

// Report names an embedded dashboard query
type Report string

const (
	ReportMonthlyBar    Report = "monthly-bar"
	ReportMonthlySeries Report = "monthly-series"
	ReportTotals        Report = "totals"
)

var reportFiles = map[Report]string{
	ReportMonthlyBar:    "reports/monthly_bar.sql",
	ReportMonthlySeries: "reports/monthly_timeseries.sql",
	ReportTotals:        "reports/totals.sql",
}

// Reports lists the available reports
func Reports() []Report {
	return []Report{ReportMonthlyBar, ReportMonthlySeries, ReportTotals}
}

// ReportRow is one category count. Month is "YYYY-MM", or "all" for totals.
type ReportRow struct {
	Month    string
	Category string
	Total    int64
}

// ReportQuery returns the SQL text of a report
func ReportQuery(report Report) (string, error) {
	path, ok := reportFiles[report]
	if !ok {
		return "", fmt.Errorf("unknown report %q", report)
	}
	content, err := reportsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read report %s: %w", path, err)
	}
	return string(content), nil
}

// RunReport runs a report. month selects the month for the monthly bar report and
// is ignored by the others.
func (d *DB) RunReport(ctx context.Context, report Report, month time.Time) ([]ReportRow, error) {
	query, err := ReportQuery(report)
	if err != nil {
		return nil, err
	}

	var args []any
	if report == ReportMonthlyBar {
		start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
		args = append(args, start.Format("2006-01-02"), start.AddDate(0, 1, 0).Format("2006-01-02"))
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run report %s: %w", report, err)
	}
	defer rows.Close()

	var result []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.Month, &r.Category, &r.Total); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}

	return result, nil
}
