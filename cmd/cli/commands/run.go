package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/clients/clicksend"
	"github.com/jakechorley/roster-notify/pkg/clients/gmailclient"
	"github.com/jakechorley/roster-notify/pkg/clients/portal"
	"github.com/jakechorley/roster-notify/pkg/core/roster"
	"github.com/jakechorley/roster-notify/pkg/core/services"
	"github.com/jakechorley/roster-notify/pkg/utils"
)

// RunCmd creates the run command
func RunCmd(app *AppContext) *cobra.Command {
	var (
		dateArg string
		exact   bool
		noSMS   bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the final roster, text the recipients and record the shifts",
		Long: `Logs into the roster portal and waits until the roster for the target date(s) is final,
then texts the recipients and records one row per person in script_logs.

By default the target is tomorrow, or Saturday and Sunday when run on a Friday.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := app.Cfg.Location()
			if err != nil {
				return fmt.Errorf("failed to load timezone: %w", err)
			}

			now := time.Now().In(loc)
			base, err := services.ResolveBaseDate(dateArg, now, loc)
			if err != nil {
				return err
			}
			dates := services.TargetDates(base, exact)

			app.Logger.Info("run command",
				zap.String("base_date", base.Format("2006-01-02")),
				zap.Int("dates", len(dates)),
				zap.Bool("no_sms", noSMS),
				zap.Bool("dry_run", dryRun))

			if err := app.Secrets.RequirePortal(); err != nil {
				return err
			}

			session, err := portal.NewSession(portal.Config{
				URL:               app.Cfg.Portal.URL,
				PersonnelIDs:      app.Cfg.Portal.PersonnelIDs,
				Passwords:         app.Secrets.PortalPasswords,
				Headless:          app.Cfg.Portal.IsHeadless(),
				NavigationTimeout: app.Cfg.Portal.NavigationTimeout,
				MonthOffsets:      app.Cfg.Portal.MonthOffsets,
				ChromeBin:         app.Cfg.Portal.ChromeBin,
			}, app.Logger)
			if err != nil {
				return fmt.Errorf("failed to create portal session: %w", err)
			}

			controller := roster.NewController(
				session,
				roster.Parser{Signature: app.Cfg.SMS.Signature},
				app.Cfg.RosterRetryConfig(),
				app.Logger,
			)

			deps := services.RunDeps{
				Source:     controller,
				Recipients: app.Cfg.Recipients,
				Categories: app.Cfg.NotifyCategories(),
				AlertEmail: app.Cfg.Alerts.Email,
				Logger:     app.Logger,
			}

			if !noSMS && !dryRun {
				sms, err := newSMSClient(app)
				if err != nil {
					return err
				}
				deps.SMS = sms
			}

			if app.Cfg.Alerts.Email != "" && !dryRun {
				// A missing token only costs the email alert, never the run
				email, err := newAlertEmailClient(app)
				if err != nil {
					app.Logger.Warn("Alert email disabled", zap.Error(err))
				} else {
					deps.Email = email
				}
			}

			store, err := app.OpenRunStore(dryRun)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()
			deps.Store = store

			result, err := services.RunRoster(app.Ctx, deps, services.RunOptions{
				Dates:  dates,
				Now:    now,
				NoSMS:  noSMS,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			printRunResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateArg, "date", "today", "Base date: today, tomorrow or YYYY-MM-DD")
	cmd.Flags().BoolVar(&exact, "exact", false, "Process the base date itself instead of the following day(s)")
	cmd.Flags().BoolVar(&noSMS, "no-sms", false, "Do not send any SMS")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not send any SMS or record any rows")

	return cmd
}

func newSMSClient(app *AppContext) (*clicksend.Client, error) {
	if err := app.Secrets.RequireSMS(); err != nil {
		return nil, err
	}

	var opts []clicksend.Option
	if app.Cfg.SMS.Sender != "" {
		opts = append(opts, clicksend.WithSender(app.Cfg.SMS.Sender))
	}
	if app.Cfg.SMS.Endpoint != "" {
		opts = append(opts, clicksend.WithEndpoint(app.Cfg.SMS.Endpoint))
	}

	client, err := clicksend.NewClient(app.Secrets.ClickSendUsername, app.Secrets.ClickSendAPIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms client: %w", err)
	}
	return client, nil
}

func newAlertEmailClient(app *AppContext) (*gmailclient.Client, error) {
	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, err
	}
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}

	tokens, err := utils.NewTokenStore()
	if err != nil {
		return nil, err
	}
	token, err := tokens.SavedToken(app.Ctx, oauthConfig, app.Env, app.Logger)
	if err != nil {
		return nil, err
	}

	return gmailclient.NewClient(app.Ctx, oauthCfg, token, app.Cfg.Alerts.GmailUserID)
}

func printRunResult(result *services.RunResult) {
	fmt.Printf("\n✓ Roster run %s complete\n\n", result.RunID)

	if result.Message == "" {
		fmt.Println("Nothing to report.")
	} else {
		fmt.Println(result.Message)
	}
	fmt.Println()

	if len(result.Notified) > 0 {
		fmt.Printf("Texted %d recipients:\n", len(result.Notified))
		for _, name := range result.Notified {
			fmt.Printf("  ✓ %s\n", name)
		}
		fmt.Println()
	}

	if len(result.NotifyErrors) > 0 {
		fmt.Printf("⚠️  Failed to text %d recipients:\n", len(result.NotifyErrors))
		for _, ne := range result.NotifyErrors {
			fmt.Printf("  ✗ %s (%s): %v\n", ne.Recipient, ne.Phone, ne.Err)
		}
		fmt.Println()
	}

	fmt.Printf("Recorded %d rows.\n", result.Persisted)
}
