package main

import (
	"fmt"

	"github.com/aretw0/arcflow/internal/cli"
	"github.com/aretw0/arcflow/internal/presentation/tui"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List, read and clear notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List notifications",
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		requestID, _ := cmd.Flags().GetString("request")
		unread, _ := cmd.Flags().GetBool("unread")

		var (
			out []*domain.Notification
			err error
		)
		if unread {
			out, err = rt.Engine.GetUnreadNotifications(cmd.Context(), requestID)
		} else {
			out, err = rt.Engine.ListNotifications(cmd.Context(), requestID)
		}
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, out)
		}
		if len(out) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
		}
		for _, n := range out {
			fmt.Fprintln(cmd.OutOrStdout(), tui.NotificationLine(n))
		}
		return nil
	}),
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read ID...",
	Short: "Mark notifications as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		for _, id := range args {
			if err := rt.Engine.MarkNotificationRead(cmd.Context(), id); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d read\n", len(args))
		return nil
	}),
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete notifications",
	RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *cli.Runtime) error {
		requestID, _ := cmd.Flags().GetString("request")
		n, err := rt.Engine.ClearNotifications(cmd.Context(), requestID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d notifications\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsClearCmd)
	notificationsListCmd.Flags().String("request", "", "Only notifications for this request")
	notificationsListCmd.Flags().Bool("unread", false, "Only unread notifications")
	notificationsClearCmd.Flags().String("request", "", "Only notifications for this request")
}
