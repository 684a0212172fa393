package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "hippo.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hippo",
		Short: "Hippo: Packaging Hippo site backend",
		Long:  "Hippo serves the Packaging Hippo live chat, AI auto-reply, redirect and inquiry APIs.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRedirectCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newChatCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hippo %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
