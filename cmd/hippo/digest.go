package main

import (
	"context"
	"fmt"
	"time"

	"github.com/packaginghippo/hippo/internal/digest"
	"github.com/packaginghippo/hippo/internal/notify"
	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Chat activity digest",
	}

	cmd.AddCommand(newDigestPreviewCmd())
	cmd.AddCommand(newDigestSendCmd())
	return cmd
}

func newDigestPreviewCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the digest for the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestPreview(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runDigestPreview(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	until := time.Now()
	report, err := digest.Build(context.Background(), gormDB, until.Add(-digest.Period), until)
	if err != nil {
		return err
	}
	ev := digest.Format(report)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ev.Title)
	fmt.Fprintln(out, ev.Body)
	return nil
}

func newDigestSendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the digest to the configured channels now",
		Long:  "Builds the digest for the last 24 hours and posts it to Slack and/or Discord. Nothing is sent when there was no activity.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestSend(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runDigestSend(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return err
	}
	if _, ok := notifier.(notify.Nop); ok {
		return fmt.Errorf("digest: no notify channel configured in %s", configPath)
	}

	sent, err := digest.NewSender(gormDB, notifier, nil).Send(context.Background())
	if err != nil {
		return err
	}
	if !sent {
		fmt.Fprintln(cmd.OutOrStdout(), "No chat activity in the last 24 hours; nothing sent.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Digest sent.")
	return nil
}
