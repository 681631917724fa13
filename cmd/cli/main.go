package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/cmd/cli/commands"
	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.Ctx = ctx

	rootCmd := &cobra.Command{
		Use:   "roster-notify",
		Short: "Roster notifier - text the final roster from the scheduling portal",
		Long: `A cron-driven CLI that reads the final roster from the scheduling portal,
texts it to the configured recipients and records each day in script_logs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")

	rootCmd.AddCommand(commands.RunCmd(app))
	rootCmd.AddCommand(commands.ReportCmd(app))
	rootCmd.AddCommand(commands.HistoryCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.AuthorizeCmd(app))

	err := rootCmd.Execute()
	if err != nil && app.Logger != nil {
		app.Logger.Error("Command failed", zap.Error(err))
		app.Logger.Sync()
	}
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config and secrets. Clients are built by the commands that need them.
func initApp() error {
	var err error
	app.Env = env

	// Initialize logger
	var logFile string
	app.Logger, logFile, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env), zap.String("log_file", logFile))

	// Load configuration
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully",
		zap.Strings("personnel_ids", app.Cfg.Portal.PersonnelIDs),
		zap.Int("recipients", len(app.Cfg.Recipients)),
		zap.String("database", app.Cfg.Database.Driver))

	// Secrets come from the environment and .env files
	app.Secrets, err = config.LoadSecretsWithEnv(env, app.Cfg.Portal.PersonnelIDs)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	return nil
}
