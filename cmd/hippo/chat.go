package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Inspect chat conversations",
	}

	cmd.AddCommand(newChatListCmd())
	cmd.AddCommand(newChatShowCmd())
	return cmd
}

func newChatListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatList(cmd, configPath, status)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, closed, ai-closed)")
	return cmd
}

func openChat(configPath string) (*chat.Service, error) {
	_, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return nil, err
	}
	return chat.NewService(chat.Options{DB: gormDB})
}

func runChatList(cmd *cobra.Command, configPath, status string) error {
	svc, err := openChat(configPath)
	if err != nil {
		return err
	}
	convs, err := svc.List(context.Background(), status)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVISITOR\tSTATUS\tHANDLED BY\tAGENT\tUNREAD\tLAST MESSAGE")
	for _, c := range convs {
		last := "-"
		if c.LastMessageAt != nil {
			last = c.LastMessageAt.Local().Format(time.DateTime)
		}
		handled := c.HandledBy
		if handled == "" {
			handled = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.VisitorName, c.Status, handled, c.AssignedAgent, c.UnreadCount, last)
	}
	return w.Flush()
}

func newChatShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Long:  "Prints every message of a conversation without marking anything read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid conversation id %q", args[0])
			}
			return runChatShow(cmd, configPath, uint(id))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	return cmd
}

func runChatShow(cmd *cobra.Command, configPath string, id uint) error {
	svc, err := openChat(configPath)
	if err != nil {
		return err
	}
	conv, msgs, err := svc.ConversationHistory(context.Background(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Conversation %d with %s (%s)\n", conv.ID, conv.VisitorName, conv.Status)
	if conv.VisitorEmail != "" {
		fmt.Fprintf(out, "Email: %s\n", conv.VisitorEmail)
	}
	if conv.Rating != nil {
		fmt.Fprintf(out, "Rating: %d/5 %s\n", *conv.Rating, conv.Feedback)
	}
	fmt.Fprintln(out)
	for _, m := range msgs {
		who := conv.VisitorName
		switch m.Sender {
		case models.SenderAgent:
			who = m.AgentName
		case models.SenderAI:
			who = m.AgentName + " (ai)"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), who, m.Content)
	}
	return nil
}
