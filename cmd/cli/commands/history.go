package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded roster rows with their category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := app.Cfg.Location()
			if err != nil {
				return fmt.Errorf("failed to load timezone: %w", err)
			}
			first, last, err := dateRange(from, to, time.Now().In(loc))
			if err != nil {
				return err
			}

			app.Logger.Debug("history command", zap.String("from", first), zap.String("to", last))

			store, err := app.openSQLStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logs, err := store.ListScriptLogs(app.Ctx, first, last)
			if err != nil {
				return err
			}

			fmt.Printf("\nRoster history %s to %s (%d rows)\n\n", first, last, len(logs))
			if len(logs) == 0 {
				return nil
			}
			fmt.Println(renderHistory(logs))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date as YYYY-MM-DD (default: 30 days before --to)")
	cmd.Flags().StringVar(&to, "to", "", "Last date as YYYY-MM-DD (default: today)")

	return cmd
}
