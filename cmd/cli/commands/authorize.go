package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/utils"
)

// AuthorizeCmd creates the authorize command
func AuthorizeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Authorize Gmail once so unattended runs can email failure alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
			if err != nil {
				return fmt.Errorf("failed to load OAuth client config: %w", err)
			}
			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				return err
			}

			tokens, err := utils.NewTokenStore()
			if err != nil {
				return err
			}
			if _, err := tokens.Authorize(app.Ctx, oauthConfig, app.Env, app.Logger); err != nil {
				return err
			}

			fmt.Println("\n✓ Authorization saved")
			return nil
		},
	}
}
