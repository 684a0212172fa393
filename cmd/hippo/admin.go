package main

import (
	"fmt"
	"time"

	"github.com/packaginghippo/hippo/internal/auth"
	"github.com/packaginghippo/hippo/internal/config"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin API helpers",
	}

	cmd.AddCommand(newAdminTokenCmd())
	return cmd
}

func newAdminTokenCmd() *cobra.Command {
	var (
		configPath string
		subject    string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		Long:  "Signs an admin token with admin.token_secret. Pass it as 'Authorization: Bearer <token>'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminToken(cmd, configPath, subject, ttl)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	cmd.Flags().StringVarP(&subject, "subject", "s", "admin", "who the token is for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: admin.token_ttl from config)")
	return cmd
}

func runAdminToken(cmd *cobra.Command, configPath, subject string, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Admin.TokenSecret == "" {
		return fmt.Errorf("admin: admin.token_secret is not set in %s", configPath)
	}
	if ttl == 0 {
		ttl = cfg.Admin.TokenTTL
	}
	issuer, err := auth.NewIssuer(cfg.Admin.TokenSecret, ttl, nil)
	if err != nil {
		return err
	}
	token, exp, err := issuer.Issue(subject)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
	return nil
}
