package main

import (
	"fmt"

	"github.com/packaginghippo/hippo/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Hippo tables",
		Long:  "Migrates all tables and seeds the redirect rules listed in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedRedirects(gormDB, cfg.Redirects); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d redirects\n", len(cfg.Redirects))
	return nil
}
