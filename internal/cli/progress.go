package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProgressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <goal-id>",
		Short: "Show a goal's progress figures",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := parseID("goal_id", args[0])
			if err != nil {
				return err
			}
			p, err := a.svc.Ledger.Progress(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s (%s)\n", p.Goal.ID, p.Goal.Title, p.Goal.Status)
			fmt.Fprintf(out, "  saved:     %s of %s (%s%%)\n", p.Goal.CurrentAmount, p.Goal.TargetAmount, p.Percentage.StringFixed(2))
			fmt.Fprintf(out, "  remaining: %s\n", p.Remaining)
			if !p.Goal.TargetDate.IsEmpty() {
				fmt.Fprintf(out, "  target:    %s (%d months)\n", p.Goal.TargetDate, p.MonthsRemaining)
				fmt.Fprintf(out, "  required:  %s/month\n", p.RequiredMonthly)
			}
			fmt.Fprintf(out, "  average:   %s/month\n", p.AverageMonthly)
			fmt.Fprintf(out, "  on track:  %t\n", p.OnTrack)
			return nil
		}),
	}
}
