package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema migrations for the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Info("migrate command", zap.String("driver", app.Cfg.Database.Driver))

			store, err := app.openSQLStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RunMigrations(app.Ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Printf("\n✓ %s schema is up to date\n", app.Cfg.Database.Driver)
			return nil
		},
	}
}
