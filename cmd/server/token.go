package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmined/sharegate/internal/server/auth"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user>",
		Short: "Issue an access token for a user with the configured auth settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.TokenIssuer == "" || cfg.Auth.AccessTokenSecret == "" {
				return fmt.Errorf("auth `token_issuer` and `access_token_secret` must be set")
			}

			token, err := auth.NewAuthService(&cfg.Auth).IssueAccessToken(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
