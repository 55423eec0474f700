package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemindersCommand(a *app) *cobra.Command {
	var (
		today      string
		daysBefore int
	)
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Announce occurrences due a fixed number of days from today",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&today, "today", "", "reference date (default today)")
	cmd.Flags().IntVar(&daysBefore, "days", 3, "days ahead of the due date")
	cmd.RunE = a.run(func(cmd *cobra.Command, _ []string) error {
		date, err := a.dateOrToday("today", today)
		if err != nil {
			return err
		}
		reminders, err := a.svc.Recurring.UpcomingReminders(cmd.Context(), date, daysBefore)
		if err != nil {
			return err
		}
		for _, r := range reminders {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s due %s\n", r.Schedule.ID, r.Schedule.Title, r.DueDate)
		}
		return nil
	})
	return cmd
}
