package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/packaginghippo/hippo/internal/redirect"
	"github.com/spf13/cobra"
)

func newRedirectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirect",
		Short: "Manage URL redirect rules",
	}

	cmd.AddCommand(newRedirectListCmd())
	cmd.AddCommand(newRedirectAddCmd())
	cmd.AddCommand(newRedirectRemoveCmd())
	return cmd
}

func newRedirectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List redirect rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRedirectList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runRedirectList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	rules, err := redirect.NewService(gormDB).List(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rules) == 0 {
		fmt.Fprintln(out, "No redirects.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tTYPE\tACTIVE")
	for _, r := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\n", r.ID, r.SourcePath, r.TargetPath, r.StatusCode(), r.Active)
	}
	return w.Flush()
}

func newRedirectAddCmd() *cobra.Command {
	var (
		configPath string
		typ        int
		inactive   bool
	)

	cmd := &cobra.Command{
		Use:   "add <source> <target>",
		Short: "Add a redirect rule",
		Long:  "Adds an exact-match redirect. Paths are normalized to start with '/'.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRedirectAdd(cmd, configPath, args[0], args[1], typ, !inactive)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	cmd.Flags().IntVarP(&typ, "type", "t", 301, "redirect status code (301 or 302)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the rule disabled")
	return cmd
}

func runRedirectAdd(cmd *cobra.Command, configPath, source, target string, typ int, active bool) error {
	_, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	rule, err := redirect.NewService(gormDB).Create(context.Background(), redirect.RuleInput{
		Source: source,
		Target: target,
		Type:   typ,
		Active: &active,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added redirect %d: %s -> %s (%d)\n", rule.ID, rule.SourcePath, rule.TargetPath, rule.StatusCode())
	return nil
}

func newRedirectRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a redirect rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid redirect id %q", args[0])
			}
			return runRedirectRemove(cmd, configPath, uint(id))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runRedirectRemove(cmd *cobra.Command, configPath string, id uint) error {
	_, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	if err := redirect.NewService(gormDB).Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed redirect %d\n", id)
	return nil
}
