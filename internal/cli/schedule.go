package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finledger/internal/services"
)

func newScheduleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and pause recurring schedules",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <schedule-id>",
			Short: "Show a schedule, its state and next occurrence",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				id, err := parseID("schedule_id", args[0])
				if err != nil {
					return err
				}
				s, err := a.svc.Store.GetSchedule(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s\n", s.ID, s.Title)
				fmt.Fprintf(out, "  %s %s every %d %s\n", s.TransactionType, s.Amount, s.Interval, s.Frequency)
				fmt.Fprintf(out, "  active: %t  state: %s\n", s.Active, services.State(s, a.svc.Today()))
				if !s.LastGeneratedDate.IsEmpty() {
					fmt.Fprintf(out, "  last generated: %s\n", s.LastGeneratedDate)
				}
				if next, err := services.NextOccurrence(s); err == nil {
					fmt.Fprintf(out, "  next occurrence: %s\n", next)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "pause <schedule-id>",
			Short: "Deactivate a schedule",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				id, err := parseID("schedule_id", args[0])
				if err != nil {
					return err
				}
				return a.svc.Recurring.Deactivate(cmd.Context(), id)
			}),
		},
		&cobra.Command{
			Use:   "resume <schedule-id>",
			Short: "Reactivate a schedule; its end date is kept",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				id, err := parseID("schedule_id", args[0])
				if err != nil {
					return err
				}
				return a.svc.Recurring.Reactivate(cmd.Context(), id)
			}),
		},
	)
	return cmd
}
