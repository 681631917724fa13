package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/pkg/postgres"
)

// ReportCmd creates the report command
func ReportCmd(app *AppContext) *cobra.Command {
	var monthArg string

	names := make([]string, 0, len(postgres.Reports()))
	for _, r := range postgres.Reports() {
		names = append(names, string(r))
	}

	cmd := &cobra.Command{
		Use:       fmt.Sprintf("report <%s>", strings.Join(names, "|")),
		Short:     "Run a dashboard query against the postgres database",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := postgres.Report(args[0])

			loc, err := app.Cfg.Location()
			if err != nil {
				return fmt.Errorf("failed to load timezone: %w", err)
			}
			month, err := parseMonth(monthArg, time.Now().In(loc))
			if err != nil {
				return err
			}

			app.Logger.Debug("report command",
				zap.String("report", string(report)),
				zap.String("month", month.Format("2006-01")))

			database, err := app.openPostgres()
			if err != nil {
				return err
			}
			defer database.Close()

			rows, err := database.RunReport(app.Ctx, report, month)
			if err != nil {
				return err
			}

			app.Logger.Info("Report complete", zap.String("report", string(report)), zap.Int("rows", len(rows)))

			fmt.Printf("\n%s\n\n", report)
			if len(rows) == 0 {
				fmt.Println("No rows.")
				return nil
			}
			fmt.Println(renderReport(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&monthArg, "month", "", "Month for monthly-bar as YYYY-MM (default: current month)")

	return cmd
}
