package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newNotificationsCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications <user-id>",
		Short: "List a user's notifications, newest first",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 for all)")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		userID, err := parseID("user_id", args[0])
		if err != nil {
			return err
		}
		ns, err := a.svc.Store.NotificationsForUser(cmd.Context(), userID, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range ns {
			fmt.Fprintf(out, "%s  %-32s %-40s %s\n", n.CreatedAt.Format(time.RFC3339), n.Kind, n.Source, n.Title)
		}
		if len(ns) == 0 {
			fmt.Fprintln(out, "no notifications")
		}
		return nil
	})
	return cmd
}
